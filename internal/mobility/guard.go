// Package mobility provides the safety ring: an ultrasonic watchdog that
// slows the rover near obstacles and stops it before contact, independent
// of whatever the line follower is commanding.
package mobility

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ENGR161-Team1/MARCO/internal/drive"
)

// Ranger reports the distance to the nearest obstacle in cm.
type Ranger interface {
	Distance() (float64, error)
}

// Mode is the guard's current clearance state.
type Mode int

const (
	ModeClear Mode = iota
	ModeSlow
	ModeStop
)

func (m Mode) String() string {
	switch m {
	case ModeSlow:
		return "slow"
	case ModeStop:
		return "stop"
	default:
		return "clear"
	}
}

// Config holds the clearance thresholds in cm.
type Config struct {
	StoppingDistance float64 // full stop below this
	SlowdownDistance float64 // reduced speed below this
	SlowFactor       float64 // speed multiplier in slow mode
}

// DefaultConfig mirrors the chassis tuning: stop at 15 cm, slow at 30 cm.
func DefaultConfig() Config {
	return Config{StoppingDistance: 15, SlowdownDistance: 30, SlowFactor: 0.5}
}

// Guard polls a ranger and classifies the path ahead.
type Guard struct {
	cfg    Config
	ranger Ranger
	clk    clock.Clock

	mu   sync.RWMutex
	mode Mode
}

// NewGuard builds a guard; a nil clk means wall clock.
func NewGuard(cfg Config, ranger Ranger, clk clock.Clock) *Guard {
	if clk == nil {
		clk = clock.New()
	}
	return &Guard{cfg: cfg, ranger: ranger, clk: clk}
}

// Mode returns the current clearance state.
func (g *Guard) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// Observe feeds one distance reading through the classifier and reports
// the resulting mode.
func (g *Guard) Observe(dist float64) Mode {
	var next Mode
	switch {
	case dist < g.cfg.StoppingDistance:
		next = ModeStop
	case dist < g.cfg.SlowdownDistance:
		next = ModeSlow
	default:
		next = ModeClear
	}

	g.mu.Lock()
	prev := g.mode
	g.mode = next
	g.mu.Unlock()

	if next != prev {
		switch next {
		case ModeStop:
			log.Printf("safety: obstacle at %.1f cm, stopping", dist)
		case ModeSlow:
			log.Printf("safety: obstacle at %.1f cm, slowing down", dist)
		default:
			log.Printf("safety: path clear, resuming")
		}
	}
	return next
}

// Run polls the ranger at the given interval until the context ends. A
// failed reading counts as the slowdown boundary, the same conservative
// default the chassis has always used.
func (g *Guard) Run(ctx context.Context, interval time.Duration) error {
	ticker := g.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			dist, err := g.ranger.Distance()
			if err != nil {
				dist = g.cfg.SlowdownDistance
			}
			g.Observe(dist)
		}
	}
}

// guarded scales or zeroes commanded speeds according to the guard mode.
type guarded struct {
	inner drive.Actuator
	guard *Guard
}

// Wrap returns an actuator that applies the guard to every command on its
// way to the motors. Stop passes through untouched.
func (g *Guard) Wrap(inner drive.Actuator) drive.Actuator {
	return &guarded{inner: inner, guard: g}
}

func (w *guarded) SetSpeeds(left, right float64) error {
	switch w.guard.Mode() {
	case ModeStop:
		return w.inner.SetSpeeds(0, 0)
	case ModeSlow:
		f := w.guard.cfg.SlowFactor
		return w.inner.SetSpeeds(left*f, right*f)
	default:
		return w.inner.SetSpeeds(left, right)
	}
}

func (w *guarded) Stop() error { return w.inner.Stop() }
