package follow

// window is a bounded sliding record of recent line detections, oldest
// evicted. It feeds the line-type diagnostic only and never influences
// control decisions.
type window struct {
	hits []bool
	next int
	full bool
}

func newWindow(capacity int) *window {
	if capacity <= 0 {
		capacity = 25
	}
	return &window{hits: make([]bool, capacity)}
}

func (w *window) push(seen bool) {
	w.hits[w.next] = seen
	w.next++
	if w.next == len(w.hits) {
		w.next = 0
		w.full = true
	}
}

func (w *window) ratio() (float64, bool) {
	n := w.next
	if w.full {
		n = len(w.hits)
	}
	if n == 0 {
		return 0, false
	}
	count := 0
	for i := 0; i < n; i++ {
		if w.hits[i] {
			count++
		}
	}
	return float64(count) / float64(n), true
}

// classify buckets the detection ratio into the line-continuity classes
// used for diagnostics.
func (w *window) classify() string {
	ratio, ok := w.ratio()
	switch {
	case !ok:
		return "unknown"
	case ratio > 0.85:
		return "continuous"
	case ratio >= 0.4:
		return "dotted/broken"
	default:
		return "mostly broken"
	}
}
