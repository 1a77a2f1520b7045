package signal

import (
	"context"
	"testing"
	"time"

	"ujian-proctor-gateway/internal/geo"
)

type fakeProbe struct {
	geometry Geometry
	err      error
}

func (f *fakeProbe) Geometry() (Geometry, error) {
	return f.geometry, f.err
}

func (f *fakeProbe) Position(ctx context.Context) (geo.Position, error) {
	return geo.Position{}, ErrUnavailable
}

func TestViewportReduced(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
		want bool
	}{
		{
			"full desktop",
			Geometry{ViewportWidth: 1920, ViewportHeight: 1080, ScreenWidth: 1920, ScreenHeight: 1080},
			false,
		},
		{
			"60 percent width desktop",
			Geometry{ViewportWidth: 1152, ViewportHeight: 1080, ScreenWidth: 1920, ScreenHeight: 1080},
			true,
		},
		{
			"just above desktop threshold",
			Geometry{ViewportWidth: 1537, ViewportHeight: 1080, ScreenWidth: 1920, ScreenHeight: 1080},
			false,
		},
		{
			"75 percent on mobile is fine",
			Geometry{ViewportWidth: 270, ViewportHeight: 800, ScreenWidth: 360, ScreenHeight: 800, Mobile: true},
			false,
		},
		{
			"75 percent on desktop is reduced",
			Geometry{ViewportWidth: 1440, ViewportHeight: 1080, ScreenWidth: 1920, ScreenHeight: 1080},
			true,
		},
		{
			"60 percent height mobile",
			Geometry{ViewportWidth: 360, ViewportHeight: 480, ScreenWidth: 360, ScreenHeight: 800, Mobile: true},
			true,
		},
		{
			"zero screen geometry degrades to not reduced",
			Geometry{ViewportWidth: 1024, ViewportHeight: 768},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.ViewportReduced(0.8, 0.7); got != tt.want {
				t.Fatalf("ViewportReduced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampler_EmitsGeometryOnTicks(t *testing.T) {
	probe := &fakeProbe{geometry: Geometry{ViewportWidth: 1920, ScreenWidth: 1920}}
	s := NewSampler(probe, 20*time.Millisecond)
	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	seen := 0
	for seen < 3 {
		select {
		case sig := <-s.Signals():
			if sig.Kind != KindGeometry {
				t.Fatalf("unexpected signal kind %s", sig.Kind)
			}
			if sig.Geometry == nil || sig.Geometry.ViewportWidth != 1920 {
				t.Fatalf("geometry payload missing: %+v", sig)
			}
			seen++
		case <-deadline:
			t.Fatalf("only %d geometry samples before deadline", seen)
		}
	}
}

func TestSampler_PushDeliversPlatformEvents(t *testing.T) {
	probe := &fakeProbe{err: ErrUnavailable} // no geometry, push only
	s := NewSampler(probe, time.Hour)
	s.Start()
	defer s.Stop()

	s.Push(Signal{Kind: KindVisibility, Visible: false})

	select {
	case sig := <-s.Signals():
		if sig.Kind != KindVisibility || sig.Visible {
			t.Fatalf("wrong pushed signal: %+v", sig)
		}
		if sig.At.IsZero() {
			t.Fatal("pushed signal must be timestamped")
		}
	case <-time.After(time.Second):
		t.Fatal("pushed signal never delivered")
	}
}

func TestSampler_StopClosesStream(t *testing.T) {
	probe := &fakeProbe{geometry: Geometry{}}
	s := NewSampler(probe, 10*time.Millisecond)
	s.Start()
	s.Stop()

	// drain until closed; Stop must have ended the stream
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.Signals():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("signal stream not closed after Stop")
		}
	}
}
