package violation

import (
	"log"
	"sync"
	"time"

	"ujian-proctor-gateway/internal/data"
)

// EscalationState tracks the sustained-violation termination policy.
type EscalationState int

const (
	EscalationIdle EscalationState = iota
	EscalationWarned
	EscalationCountingDown
	EscalationTerminated
)

func (s EscalationState) String() string {
	switch s {
	case EscalationIdle:
		return "Idle"
	case EscalationWarned:
		return "Warned"
	case EscalationCountingDown:
		return "CountingDown"
	case EscalationTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Terminator ends the student's session server-side, marking them offline.
type Terminator interface {
	Terminate() error
}

// TerminatorFunc adapts a function to the Terminator interface.
type TerminatorFunc func() error

func (f TerminatorFunc) Terminate() error { return f() }

// EscalationController enforces forced logout when a violation is not
// remedied in time. Terminated is terminal: the terminator runs exactly
// once per session no matter how often triggers repeat.
type EscalationController struct {
	mu         sync.Mutex
	clock      Clock
	state      EscalationState
	countdown  Timer
	duration   time.Duration
	terminator Terminator
	alert      func(Alert)
}

// NewEscalationController builds a controller with the given countdown
// duration. alert surfaces termination failures through the same channel
// used for violation warnings.
func NewEscalationController(clock Clock, countdown time.Duration, terminator Terminator, alert func(Alert)) *EscalationController {
	if clock == nil {
		clock = SystemClock
	}
	return &EscalationController{
		clock:      clock,
		state:      EscalationIdle,
		duration:   countdown,
		terminator: terminator,
		alert:      alert,
	}
}

// State returns the current escalation state.
func (c *EscalationController) State() EscalationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Warn records that the triggering condition was first observed.
func (c *EscalationController) Warn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == EscalationIdle {
		c.state = EscalationWarned
	}
}

// StartCountdown arms the forced-logout timer. Only valid from Warned.
func (c *EscalationController) StartCountdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != EscalationWarned {
		return
	}
	c.state = EscalationCountingDown
	c.countdown = c.clock.AfterFunc(c.duration, c.expire)
}

// Clear resets the controller when the condition resolves before the
// countdown elapses. A stale timer must never terminate a recovered session.
func (c *EscalationController) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == EscalationTerminated {
		return
	}
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	c.state = EscalationIdle
}

// Close cancels any pending countdown on session teardown.
func (c *EscalationController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
}

func (c *EscalationController) expire() {
	c.mu.Lock()
	if c.state != EscalationCountingDown {
		c.mu.Unlock()
		return
	}
	c.state = EscalationTerminated
	terminator := c.terminator
	alert := c.alert
	now := c.clock.Now()
	c.mu.Unlock()

	if terminator == nil {
		return
	}
	if err := terminator.Terminate(); err != nil {
		// Fail-safe bias: the local session is still treated as ended, the
		// failure is surfaced instead of silently retried.
		log.Printf("escalation: session termination failed: %v", err)
		if alert != nil {
			alert(Alert{
				Kind:    data.KindSplitScreen,
				Message: "forced logout could not be confirmed by the server",
				At:      now,
			})
		}
	}
}
