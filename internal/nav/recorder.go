package nav

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// Recorder wraps a Tracker and keeps a bounded in-memory log of pose
// snapshots for offline review. It is a composition wrapper: the base
// tracker stays usable on its own.
type Recorder struct {
	tracker *Tracker

	mu      sync.Mutex
	entries []Snapshot
	cap     int
	dropped int
}

// NewRecorder wraps t with a log holding at most capacity snapshots;
// once full the oldest entries are evicted.
func NewRecorder(t *Tracker, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Recorder{tracker: t, cap: capacity}
}

// Tracker returns the wrapped tracker.
func (r *Recorder) Tracker() *Tracker { return r.tracker }

// Current returns the latest published snapshot of the wrapped tracker.
func (r *Recorder) Current() Snapshot { return r.tracker.Current() }

func (r *Recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == r.cap {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.cap-1]
		r.dropped++
	}
	r.entries = append(r.entries, s)
}

// Entries returns a copy of the recorded snapshots, oldest first.
func (r *Recorder) Entries() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.entries))
	copy(out, r.entries)
	return out
}

// Dropped reports how many snapshots the bounded log evicted.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run drives the wrapped tracker at a fixed interval, recording the
// snapshot of every successful tick.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("nav: invalid update interval %v", interval)
	}

	clk := r.tracker.Clock()
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	dt := interval.Seconds()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := r.tracker.Tick(now, dt); err != nil {
				if imu.IsUnavailable(err) {
					return err
				}
				log.Printf("nav: tick skipped: %v", err)
				continue
			}
			r.record(r.tracker.Current())
		}
	}
}

// WriteJSON dumps the recorded log as indented JSON to path.
func (r *Recorder) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("nav: marshal pose log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("nav: write pose log %s: %w", path, err)
	}
	return nil
}
