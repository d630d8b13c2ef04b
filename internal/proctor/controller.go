// Package proctor implements the client-resident side of an attempt: a
// countdown timer and tab-visibility tracking that funnel into the same
// single-shot submit action a student would trigger manually. Everything
// here is advisory — the server enforces its own time windows and the
// at-most-once submission guarantee.
package proctor

import (
	"errors"
	"time"
)

// State is the controller's lifecycle position.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateSubmitting
	// StateSubmitFailed allows a manual retry after a failed network call;
	// timer and visibility events stay latched out.
	StateSubmitFailed
	StateSubmitted
)

// Violation thresholds: first warns, second is the last warning, third
// forces submission.
const (
	firstWarning = 1
	finalWarning = 2
	forceAt      = 3
)

// ErrNotRunning is returned when submit is invoked before the attempt
// started or after it already completed.
var ErrNotRunning = errors.New("attempt not in a submittable state")

// SubmitFunc performs the actual submission. It must be idempotent from
// the caller's point of view: the server rejects duplicates, so the
// controller only guards against firing it twice from this process.
type SubmitFunc func() error

// WarnFunc surfaces a proctoring warning to the student.
type WarnFunc func(message string)

// Controller is a single-threaded, event-driven state machine. All methods
// must be called from one goroutine (the client's event loop); there are
// no internal timers or goroutines.
type Controller struct {
	submit SubmitFunc
	warn   WarnFunc

	state      State
	remaining  int // seconds
	violations int
}

func NewController(submit SubmitFunc, warn WarnFunc) *Controller {
	if warn == nil {
		warn = func(string) {}
	}
	return &Controller{submit: submit, warn: warn}
}

// Start begins the countdown. remaining should already be clamped to
// min(quiz duration, time until the attempt window closes).
func (c *Controller) Start(remaining time.Duration) {
	if c.state != StateNotStarted {
		return
	}
	c.remaining = int(remaining / time.Second)
	c.state = StateRunning
	if c.remaining <= 0 {
		c.forceSubmit()
	}
}

// Tick advances the countdown by one second. On reaching zero it triggers
// the same submission path as a manual submit. Ticks after the latch has
// flipped are ignored.
func (c *Controller) Tick() {
	if c.state != StateRunning {
		return
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.forceSubmit()
	}
}

// VisibilityLost records a tab-switch violation. The counter is
// process-local and only resets with a full reload of the client.
func (c *Controller) VisibilityLost() {
	if c.state != StateRunning {
		return
	}
	c.violations++
	switch {
	case c.violations == firstWarning:
		c.warn("Tab switch detected. Stay on the quiz page.")
	case c.violations == finalWarning:
		c.warn("Tab switch detected again. One more and your quiz will be submitted.")
	case c.violations >= forceAt:
		c.warn("Too many tab switches. Submitting your quiz.")
		c.forceSubmit()
	}
}

// Submit is the manual submission path. It is also the retry path after a
// failed network call. Once a submission succeeds, further calls return
// ErrNotRunning.
func (c *Controller) Submit() error {
	if c.state != StateRunning && c.state != StateSubmitFailed {
		return ErrNotRunning
	}
	return c.doSubmit()
}

func (c *Controller) forceSubmit() {
	_ = c.doSubmit()
}

func (c *Controller) doSubmit() error {
	c.state = StateSubmitting
	if err := c.submit(); err != nil {
		c.state = StateSubmitFailed
		return err
	}
	c.state = StateSubmitted
	return nil
}

// NavigationGuard reports whether the client should intercept attempts to
// close or navigate away. Guarding stops once the submission completed.
func (c *Controller) NavigationGuard() bool {
	switch c.state {
	case StateRunning, StateSubmitting, StateSubmitFailed:
		return true
	default:
		return false
	}
}

// Remaining returns the seconds left on the countdown.
func (c *Controller) Remaining() time.Duration {
	return time.Duration(c.remaining) * time.Second
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Violations() int {
	return c.violations
}
