package session

import "time"

// Ticker abstracts the one-second countdown clock so tests can drive ticks
// deterministically.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

func newRealTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }

func (r *realTicker) Stop() { r.t.Stop() }
