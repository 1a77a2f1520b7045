package signal

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"ujian-proctor-gateway/internal/geo"
)

// ErrUnavailable indicates a device API is missing or permission was denied.
// Detectors treat the corresponding check as non-applicable rather than
// failing the exam flow.
var ErrUnavailable = errors.New("device signal unavailable")

type Kind string

const (
	KindVisibility Kind = "visibility"
	KindFocus      Kind = "focus"
	KindGeometry   Kind = "geometry"
	KindMotion     Kind = "motion"
)

// Signal is one timestamped raw observation. Exactly one payload field is
// meaningful, selected by Kind; the boolean fields double as the payload for
// visibility and focus signals.
type Signal struct {
	Kind     Kind
	At       time.Time
	Visible  bool
	Focused  bool
	Geometry *Geometry
	Motion   *Motion
}

// Geometry is a snapshot of the browser window relative to the screen.
type Geometry struct {
	ViewportWidth  float64
	ViewportHeight float64
	ScreenWidth    float64
	ScreenHeight   float64
	WindowX        float64
	WindowY        float64
	WindowWidth    float64
	WindowHeight   float64
	Mobile         bool
	PiPActive      bool
	TextInputFocus bool
	Focused        bool
	Visible        bool
}

// ViewportReduced reports whether the viewport occupies too little of the
// screen in either dimension. Mobile browsers naturally report smaller
// ratios, so their threshold is looser.
func (g Geometry) ViewportReduced(desktopMin, mobileMin float64) bool {
	if g.ScreenWidth <= 0 || g.ScreenHeight <= 0 {
		return false
	}
	min := desktopMin
	if g.Mobile {
		min = mobileMin
	}
	widthRatio := g.ViewportWidth / g.ScreenWidth
	heightRatio := g.ViewportHeight / g.ScreenHeight
	return widthRatio < min || heightRatio < min
}

// Motion is a device-orientation reading.
type Motion struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// Probe abstracts the device APIs the sampler reads from. Implementations
// bridge to the actual platform (browser runtime, test fake).
type Probe interface {
	// Geometry returns the current window/screen geometry. Returns
	// ErrUnavailable when the platform cannot report it.
	Geometry() (Geometry, error)

	// Position fetches a single high-accuracy geolocation fix. Must respect
	// ctx cancellation; callers cap it with the configured timeout.
	Position(ctx context.Context) (geo.Position, error)
}
