package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	gwebsocket "github.com/gorilla/websocket"

	"ujian-proctor-gateway/internal/data"
)

const (
	studentWriteWait  = 10 * time.Second
	studentPongWait   = 60 * time.Second
	studentPingPeriod = (studentPongWait * 9) / 10
	maxViolationSize  = 1024
)

// HandleStudentWS is the persistent duplex channel a student client opens
// for the duration of one exam session. Inbound frames are violation
// reports; the server never pushes application data back. Reconnection is
// from scratch: every connect is a fresh channel with no resumed state.
func (h *APIHandler) HandleStudentWS(w http.ResponseWriter, r *http.Request) {
	ujianID := chi.URLParam(r, "ujianId")
	siswaDetailID := chi.URLParam(r, "siswaDetailId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("student channel upgrade error: %v", err)
		return
	}
	log.Printf("student channel open: ujian %s siswa %s", ujianID, siswaDetailID)

	stop := make(chan struct{})
	go studentPinger(conn, stop)
	defer close(stop)
	defer conn.Close()

	conn.SetReadLimit(maxViolationSize)
	conn.SetReadDeadline(time.Now().Add(studentPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(studentPongWait))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if gwebsocket.IsUnexpectedCloseError(err, gwebsocket.CloseGoingAway, gwebsocket.CloseAbnormalClosure) {
				log.Printf("student channel read error (siswa %s): %v", siswaDetailID, err)
			}
			return
		}

		ev, err := data.ParseViolation(payload, ujianID, siswaDetailID)
		if err != nil {
			// a malformed report is dropped, the channel stays up
			log.Printf("student channel: discarding message from siswa %s: %v", siswaDetailID, err)
			continue
		}

		h.store.AddViolation(*ev)
		h.notifier.ProcessViolation(*ev)
	}
}

func studentPinger(conn *gwebsocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(studentPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(studentWriteWait))
			if err := conn.WriteMessage(gwebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
