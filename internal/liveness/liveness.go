// Package liveness tracks whether a polled target is reachable and its
// rolling failure rate.
package liveness

import "strconv"

const (
	// Low is the counter value at which a dead target comes back up.
	Low = 3
	// High is the counter value at which an alive target goes down.
	High = 6
	// Max bounds the failure counter.
	Max = 10

	// Window is the error-rate sample size.
	Window = 100
	// HighErrorRate is the rate above which monitors log a warning.
	HighErrorRate = 0.1
)

type State int

const (
	Alive State = iota
	Dead
)

func (s State) String() string {
	if s == Dead {
		return "dead"
	}
	return "alive"
}

type Transition int

const (
	NoChange Transition = iota
	WentDown
	CameUp
)

func (t Transition) String() string {
	switch t {
	case WentDown:
		return "down"
	case CameUp:
		return "up"
	default:
		return "none"
	}
}

// Liveness is a Schmitt trigger over probe outcomes. The zero value is alive
// with an empty counter.
type Liveness struct {
	state   State
	count   int
	lastErr error
}

// Record feeds one probe outcome (nil for success) and reports a state flip.
func (l *Liveness) Record(err error) Transition {
	if err == nil {
		l.count = max(l.count-1, 0)
	} else {
		l.count = min(l.count+1, Max)
		l.lastErr = err
	}

	switch {
	case l.state == Alive && l.count == High:
		l.state = Dead
		return WentDown
	case l.state == Dead && l.count == Low:
		l.state = Alive
		return CameUp
	}
	return NoChange
}

func (l *Liveness) State() State { return l.state }
func (l *Liveness) Alive() bool  { return l.state == Alive }
func (l *Liveness) Count() int   { return l.count }

// LastErr is the most recent probe failure, kept after later successes.
func (l *Liveness) LastErr() error { return l.lastErr }

// ErrorRate is an exponentially smoothed failure mean. Each sample moves the
// rate by (sample-rate)/Window.
type ErrorRate struct {
	acc  float64
	rate float64
	n    int
}

// Record feeds one probe outcome and returns the rate, which is valid only
// once Window samples were seen.
func (r *ErrorRate) Record(failed bool) (rate float64, valid bool) {
	var f float64
	if failed {
		f = 1
	}
	r.acc += f - r.rate
	r.rate = r.acc / Window
	r.n++
	return r.Rate()
}

func (r *ErrorRate) Rate() (float64, bool) { return r.rate, r.n >= Window }

func (r *ErrorRate) Samples() int { return r.n }

// Monitor is the per-target state held by a polling module.
type Monitor struct {
	Name   string
	Target string
	Live   Liveness
	Errors ErrorRate
}

// FormatRate renders a rate as a whole percentage, or "n/a" while it is not valid.
func FormatRate(rate float64, valid bool) string {
	if !valid {
		return "n/a"
	}
	return strconv.Itoa(Percent(rate)) + "%"
}

// Percent truncates rate to a whole percentage.
func Percent(rate float64) int { return int(rate * 100) }
