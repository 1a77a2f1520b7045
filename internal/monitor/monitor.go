package monitor

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"ujian-proctor-gateway/internal/config"
	"ujian-proctor-gateway/internal/geo"
	"ujian-proctor-gateway/internal/signal"
	"ujian-proctor-gateway/internal/violation"
)

const alertBuffer = 16

// Monitor runs exam-integrity detection for one exam session: it owns the
// sampler, the detector and the escalation controller, and pumps every
// signal through on a single goroutine. Stopping the monitor cancels all
// pending debounce and escalation timers and closes the reporting channel.
type Monitor struct {
	sampler  *signal.Sampler
	detector *violation.Detector
	reporter *violation.Reporter
	esc      *violation.EscalationController

	alertMu      sync.Mutex
	alertsClosed bool
	alerts       chan violation.Alert
	done         chan struct{}
}

// New assembles the client-side pipeline for the given exam session.
// terminator is invoked when sustained split-screen escalates to forced
// logout.
func New(cfg config.Monitoring, probe signal.Probe, ujianID, siswaDetailID string,
	reporter *violation.Reporter, terminator violation.Terminator) *Monitor {
	m := &Monitor{
		sampler:  signal.NewSampler(probe, cfg.SampleInterval()),
		reporter: reporter,
		alerts:   make(chan violation.Alert, alertBuffer),
		done:     make(chan struct{}),
	}
	m.esc = violation.NewEscalationController(violation.SystemClock, cfg.SplitCountdown(), terminator, m.emitAlert)
	m.detector = violation.NewDetector(cfg, violation.SystemClock, ujianID, siswaDetailID,
		reporter.Report, m.emitAlert, m.esc)
	return m
}

// Alerts is the stream of user-facing warnings. Closed when the monitor
// stops.
func (m *Monitor) Alerts() <-chan violation.Alert {
	return m.alerts
}

// Notify injects a platform event (visibility change, blur, focus,
// orientation change) into the pipeline.
func (m *Monitor) Notify(sig signal.Signal) {
	m.sampler.Push(sig)
}

// Escalation exposes the controller state, mainly for the UI countdown.
func (m *Monitor) Escalation() violation.EscalationState {
	return m.esc.State()
}

// Start launches sampling and the consumption loop.
func (m *Monitor) Start() {
	m.sampler.Start()
	go m.run()
}

// Stop tears the session down: no signal is processed and no timer fires
// after it returns.
func (m *Monitor) Stop() {
	m.sampler.Stop()
	<-m.done
	m.detector.Close()
	m.reporter.Close()

	m.alertMu.Lock()
	m.alertsClosed = true
	close(m.alerts)
	m.alertMu.Unlock()
}

func (m *Monitor) run() {
	defer close(m.done)
	for sig := range m.sampler.Signals() {
		m.detector.Observe(sig)
	}
}

// emitAlert hands a warning to the UI without ever blocking the detector.
// A late timer callback racing session teardown is swallowed, not a panic.
func (m *Monitor) emitAlert(a violation.Alert) {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	if m.alertsClosed {
		return
	}
	select {
	case m.alerts <- a:
	default:
		log.Printf("monitor: alert buffer full, dropping %s alert", a.Kind)
	}
}

// EntryCheck gates exam entry on a single high-accuracy geolocation fix.
// Unlike the continuous detectors, an unavailable geolocation API fails the
// check outright: entry requires proof of presence.
func EntryCheck(ctx context.Context, probe signal.Probe, fence geo.Fence, cfg config.Monitoring) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.GeoTimeout())
	defer cancel()

	pos, err := probe.Position(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch position for exam entry")
	}
	return fence.Check(pos)
}
