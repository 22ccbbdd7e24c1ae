package session

import "time"

// Clock creates the countdown ticker and the session deadline timer.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	NewTimer(d time.Duration) Timer
}

type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock uses the runtime timers.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
func (RealClock) NewTimer(d time.Duration) Timer   { return realTimer{time.NewTimer(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time   { return r.t.C }
func (r realTicker) Reset(d time.Duration) { r.t.Reset(d) }
func (r realTicker) Stop()                 { r.t.Stop() }

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }
