package signal

import (
	"log"
	"time"

	"github.com/pkg/errors"
)

const outBuffer = 32

// Sampler turns the probe into a stream of Signals: a fixed-interval ticker
// drives geometry samples, and platform change notifications (visibility,
// blur, resize, orientation) are pushed in as they fire.
type Sampler struct {
	probe    Probe
	interval time.Duration
	out      chan Signal
	stop     chan struct{}
	done     chan struct{}
}

func NewSampler(probe Probe, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Sampler{
		probe:    probe,
		interval: interval,
		out:      make(chan Signal, outBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Signals is the stream consumed by the monitor loop. Closed on Stop.
func (s *Sampler) Signals() <-chan Signal {
	return s.out
}

// Start launches the geometry ticker. An immediate first sample is taken so
// the detector has geometry before the first interval elapses.
func (s *Sampler) Start() {
	go s.run()
}

func (s *Sampler) Stop() {
	close(s.stop)
	<-s.done
}

// Push injects a platform-event-driven signal (visibility change, blur,
// focus, orientation change). Non-blocking: if the consumer has fallen
// behind the signal is dropped, never the sampler stalled.
func (s *Sampler) Push(sig Signal) {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	select {
	case <-s.stop:
	case s.out <- sig:
	default:
		log.Printf("signal: dropping %s signal, consumer behind", sig.Kind)
	}
}

func (s *Sampler) run() {
	defer close(s.done)
	defer close(s.out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleGeometry(time.Now())
	for {
		select {
		case <-s.stop:
			return
		case tick := <-ticker.C:
			s.sampleGeometry(tick)
		}
	}
}

func (s *Sampler) sampleGeometry(at time.Time) {
	g, err := s.probe.Geometry()
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			log.Printf("signal: geometry sample failed: %v", err)
		}
		return
	}
	sig := Signal{Kind: KindGeometry, At: at, Geometry: &g}
	select {
	case <-s.stop:
	case s.out <- sig:
	default:
		log.Printf("signal: dropping geometry sample, consumer behind")
	}
}
