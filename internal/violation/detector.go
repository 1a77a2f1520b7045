package violation

import (
	"fmt"
	"sync"
	"time"

	"ujian-proctor-gateway/internal/config"
	"ujian-proctor-gateway/internal/data"
	"ujian-proctor-gateway/internal/signal"
)

// Alert is a user-facing warning raised by the detector. Escalating alerts
// carry the forced-logout countdown.
type Alert struct {
	Kind       data.ViolationKind
	Message    string
	Escalating bool
	At         time.Time
}

// motionFreezeSamples is how many identical consecutive orientation readings
// count as sensor spoofing. Real sensors always jitter.
const motionFreezeSamples = 5

type splitPhase int

const (
	splitClear splitPhase = iota
	splitDetected
	splitEscalating
)

// Detector converts raw signals into debounced violation events for one
// exam session. Naive event-to-event reporting would flood proctors with
// false positives on momentary focus loss (OS notifications), so each kind
// carries its own confirmation delay, and all kinds share a short alert
// cooldown.
//
// A Detector owns its pending timers and cancels them on Close; after Close
// it never emits again.
type Detector struct {
	mu    sync.Mutex
	cfg   config.Monitoring
	clock Clock

	ujianID       string
	siswaDetailID string

	report func(data.ViolationEvent)
	alert  func(Alert)
	esc    *EscalationController

	lastAlert map[data.ViolationKind]time.Time
	reported  map[data.ViolationKind]bool

	hidden   bool
	blurred  bool
	visTimer Timer
	blrTimer Timer

	split      splitPhase
	splitSince time.Time

	baselineHeight float64
	lastMotion     *signal.Motion
	motionRepeats  int

	closed bool
}

// NewDetector wires a detector to its sinks. report receives confirmed
// violation events (the reporter), alert receives user-facing warnings, and
// esc drives forced logout for sustained split-screen.
func NewDetector(cfg config.Monitoring, clock Clock, ujianID, siswaDetailID string,
	report func(data.ViolationEvent), alert func(Alert), esc *EscalationController) *Detector {
	if clock == nil {
		clock = SystemClock
	}
	return &Detector{
		cfg:           cfg,
		clock:         clock,
		ujianID:       ujianID,
		siswaDetailID: siswaDetailID,
		report:        report,
		alert:         alert,
		esc:           esc,
		lastAlert:     make(map[data.ViolationKind]time.Time),
		reported:      make(map[data.ViolationKind]bool),
	}
}

// Observe feeds one raw signal through the state machine. At most one
// violation event per kind can result from a single call.
func (d *Detector) Observe(sig signal.Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	switch sig.Kind {
	case signal.KindVisibility:
		d.observeVisibility(sig.Visible)
	case signal.KindFocus:
		d.observeFocus(sig.Focused)
	case signal.KindGeometry:
		if sig.Geometry != nil {
			d.observeGeometry(*sig.Geometry, sig.At)
		}
	case signal.KindMotion:
		if sig.Motion != nil {
			d.observeMotion(*sig.Motion)
		}
	}
}

// Close cancels every pending timer. Called on session teardown (submit,
// forced logout, navigation away).
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.visTimer != nil {
		d.visTimer.Stop()
	}
	if d.blrTimer != nil {
		d.blrTimer.Stop()
	}
	if d.esc != nil {
		d.esc.Close()
	}
}

func (d *Detector) observeVisibility(visible bool) {
	if !visible && !d.hidden {
		d.hidden = true
		// confirm only after the delay: momentary hides are legitimate
		d.visTimer = d.clock.AfterFunc(d.cfg.VisibilityDelay(), d.confirmHidden)
	} else if visible && d.hidden {
		d.hidden = false
		if d.visTimer != nil {
			d.visTimer.Stop()
			d.visTimer = nil
		}
	}
}

func (d *Detector) confirmHidden() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.hidden {
		return
	}
	d.raise(data.KindTabHidden, "tab or application hidden")
}

func (d *Detector) observeFocus(focused bool) {
	if !focused && !d.blurred {
		d.blurred = true
		d.blrTimer = d.clock.AfterFunc(d.cfg.BlurDelay(), d.confirmBlurred)
	} else if focused && d.blurred {
		d.blurred = false
		if d.blrTimer != nil {
			d.blrTimer.Stop()
			d.blrTimer = nil
		}
	}
}

func (d *Detector) confirmBlurred() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.blurred {
		return
	}
	d.raise(data.KindBlurred, "exam window lost focus")
}

func (d *Detector) observeGeometry(g signal.Geometry, at time.Time) {
	if at.IsZero() {
		at = d.clock.Now()
	}
	if d.baselineHeight == 0 || g.ViewportHeight > d.baselineHeight {
		d.baselineHeight = g.ViewportHeight
	}

	d.stepSplitScreen(g.ViewportReduced(d.cfg.DesktopViewportMin, d.cfg.MobileViewportMin), at)

	if d.floatingWindow(g) {
		d.raise(data.KindFloatingWindow, "floating window or overlay detected")
	}
}

// stepSplitScreen runs the Clear -> Detected -> Detected+Escalating machine.
// Geometry is sampled on the poll tick, so no extra debounce applies.
func (d *Detector) stepSplitScreen(reduced bool, at time.Time) {
	switch {
	case reduced && d.split == splitClear:
		d.split = splitDetected
		d.splitSince = at
		d.raise(data.KindSplitScreen, "split screen detected, restore the exam window")
		if d.esc != nil {
			d.esc.Warn()
		}

	case reduced && d.split == splitDetected:
		if at.Sub(d.splitSince) >= d.cfg.SplitSustain() {
			d.split = splitEscalating
			if d.alert != nil {
				d.alert(Alert{
					Kind:       data.KindSplitScreen,
					Message:    fmt.Sprintf("split screen persists, forced logout in %ds", int(d.cfg.SplitCountdown().Seconds())),
					Escalating: true,
					At:         at,
				})
			}
			if d.esc != nil {
				d.esc.StartCountdown()
			}
		}

	case !reduced && d.split != splitClear:
		d.split = splitClear
		d.splitSince = time.Time{}
		if d.esc != nil {
			d.esc.Clear()
		}
	}
}

// floatingWindow bundles the desktop and mobile heuristics. There is no
// authoritative platform signal for "another window floats above the exam",
// so false positives and negatives are accepted.
func (d *Detector) floatingWindow(g signal.Geometry) bool {
	if g.Mobile {
		if g.PiPActive {
			return true
		}
		if g.Focused && !g.Visible {
			return true
		}
		if d.baselineHeight > 0 && !g.TextInputFocus &&
			d.baselineHeight-g.ViewportHeight > d.cfg.MobileHeightDeltaPx {
			return true
		}
		return false
	}

	if g.ScreenWidth <= 0 || g.ScreenHeight <= 0 {
		return false
	}
	area := (g.WindowWidth * g.WindowHeight) / (g.ScreenWidth * g.ScreenHeight)
	offset := g.WindowX > d.cfg.FloatingOffsetPx || g.WindowY > d.cfg.FloatingOffsetPx
	return area < d.cfg.FloatingAreaMax && offset
}

func (d *Detector) observeMotion(m signal.Motion) {
	if d.lastMotion != nil &&
		m.Alpha == d.lastMotion.Alpha && m.Beta == d.lastMotion.Beta && m.Gamma == d.lastMotion.Gamma {
		d.motionRepeats++
		if d.motionRepeats >= motionFreezeSamples {
			d.motionRepeats = 0
			d.raise(data.KindMotionAnomaly, "device orientation frozen, sensor spoofing suspected")
		}
	} else {
		d.motionRepeats = 0
	}
	last := m
	d.lastMotion = &last
}

// raise emits an alert and, unless suppressed, a backend event. Callers hold
// d.mu. Cooldown keeps repeat alerts of one kind at least AlertCooldown
// apart; SPLIT_SCREEN is additionally reported to the backend only on its
// first occurrence per session.
func (d *Detector) raise(kind data.ViolationKind, msg string) {
	now := d.clock.Now()
	if last, ok := d.lastAlert[kind]; ok && now.Sub(last) < d.cfg.AlertCooldown() {
		return
	}
	d.lastAlert[kind] = now

	if d.alert != nil {
		d.alert(Alert{Kind: kind, Message: msg, At: now})
	}

	if kind == data.KindSplitScreen && d.reported[kind] {
		return
	}
	d.reported[kind] = true

	if d.report != nil {
		d.report(data.ViolationEvent{
			UjianID:       d.ujianID,
			SiswaDetailID: d.siswaDetailID,
			Kind:          kind,
			Timestamp:     now.UnixMilli(),
		})
	}
}
