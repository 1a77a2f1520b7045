package alerting

import (
	"log"

	"ujian-proctor-gateway/internal/data"
	"ujian-proctor-gateway/internal/websocket"
)

// Notifier pushes violation notices received from students out to proctor
// dashboards. Other channels (email, SMS) would hang off this type too.
type Notifier struct {
	hub *websocket.Hub
}

func NewNotifier(hub *websocket.Hub) *Notifier {
	return &Notifier{hub: hub}
}

// ProcessViolation fans one violation out to every connected dashboard.
func (n *Notifier) ProcessViolation(ev data.ViolationEvent) {
	if n.hub == nil {
		return
	}
	log.Printf("violation %s from siswa %s (ujian %s)", ev.Kind, ev.SiswaDetailID, ev.UjianID)
	n.hub.BroadcastViolation(ev)
}
