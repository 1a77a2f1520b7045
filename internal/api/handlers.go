package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	gwebsocket "github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"ujian-proctor-gateway/internal/alerting"
	"ujian-proctor-gateway/internal/auth"
	"ujian-proctor-gateway/internal/data"
	"ujian-proctor-gateway/internal/geo"
	"ujian-proctor-gateway/internal/status"
	"ujian-proctor-gateway/internal/storage"
	"ujian-proctor-gateway/internal/websocket"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type APIHandler struct {
	store    *storage.MemoryStore
	watcher  *status.Watcher
	hub      *websocket.Hub
	notifier *alerting.Notifier
	auth     *auth.Manager
	fence    geo.Fence
	validate *validator.Validate
}

func NewAPIHandler(store *storage.MemoryStore, watcher *status.Watcher, hub *websocket.Hub,
	notifier *alerting.Notifier, authMgr *auth.Manager, fence geo.Fence) *APIHandler {
	return &APIHandler{
		store:    store,
		watcher:  watcher,
		hub:      hub,
		notifier: notifier,
		auth:     authMgr,
		fence:    fence,
		validate: validator.New(),
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates a proctor and issues a JWT.
func (h *APIHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	role, err := h.auth.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.auth.GenerateJWT(req.Username, role)
	if err != nil {
		log.Printf("error generating token for %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": role})
}

type studentRequest struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	NIS     string `json:"nis" validate:"required"`
	Tingkat string `json:"tingkat"`
	Jurusan string `json:"jurusan"`
}

// HandleRegisterStudent syncs one student from the portal into the
// monitoring store. The portal's CRUD side owns the real records.
func (h *APIHandler) HandleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.store.AddStudent(data.StudentStatus{
		ID:     req.ID,
		Name:   req.Name,
		NIS:    req.NIS,
		Kelas:  data.Kelas{Tingkat: req.Tingkat, Jurusan: req.Jurusan},
		Status: data.StatusOnline,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

type entryRequest struct {
	SiswaDetailID string  `json:"siswaDetailId" validate:"required"`
	Latitude      float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude     float64 `json:"longitude" validate:"min=-180,max=180"`
	Accuracy      float64 `json:"accuracy" validate:"min=0"`
}

// HandleExamEntry gates exam entry on the geofence. An implausibly accurate
// fix is rejected as fake GPS before any session is created.
func (h *APIHandler) HandleExamEntry(w http.ResponseWriter, r *http.Request) {
	ujianID := chi.URLParam(r, "ujianId")
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}

	pos := geo.Position{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy}
	if err := h.fence.Check(pos); err != nil {
		switch {
		case errors.Is(err, geo.ErrFakeGPS):
			writeError(w, http.StatusForbidden, "Fake GPS detected")
		case errors.Is(err, geo.ErrOutsideFence):
			writeError(w, http.StatusForbidden, "outside exam area")
		default:
			writeError(w, http.StatusForbidden, err.Error())
		}
		return
	}

	sessionID, err := h.store.EnterExam(req.SiswaDetailID, ujianID)
	if err != nil {
		if errors.Is(err, storage.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "student not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID, "status": string(data.StatusInExam)})
}

// HandleViolationIngest is the one-shot fallback write used when a student's
// duplex channel is down.
func (h *APIHandler) HandleViolationIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	defer r.Body.Close()

	ev, err := data.ParseViolation(body, chi.URLParam(r, "ujianId"), "")
	if err != nil {
		log.Printf("error parsing violation: %v", err)
		writeError(w, http.StatusBadRequest, "cannot parse violation")
		return
	}

	h.store.AddViolation(*ev)
	h.notifier.ProcessViolation(*ev)
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// HandleForceLogout ends a student's session, marking them OFFLINE. Invoked
// by the client-side escalation controller and by proctors.
func (h *APIHandler) HandleForceLogout(w http.ResponseWriter, r *http.Request) {
	h.transition(w, chi.URLParam(r, "siswaDetailId"), h.store.ForceLogout)
}

// HandleFinishExam marks a student EXAM_DONE on submit.
func (h *APIHandler) HandleFinishExam(w http.ResponseWriter, r *http.Request) {
	h.transition(w, chi.URLParam(r, "siswaDetailId"), h.store.FinishExam)
}

func (h *APIHandler) transition(w http.ResponseWriter, siswaDetailID string, apply func(string) error) {
	if err := apply(siswaDetailID); err != nil {
		if errors.Is(err, storage.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "student not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleCounts serves the aggregate counts-by-status dashboard query,
// computed fresh from the store.
func (h *APIHandler) HandleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.watcher.Counts(r.Context())
	if err != nil {
		log.Printf("error counting statuses: %v", err)
		writeError(w, http.StatusInternalServerError, "count query failed")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleDashboardWS upgrades a proctor dashboard connection and registers it
// with the hub, which sends the current snapshot as its first message.
func (h *APIHandler) HandleDashboardWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard upgrade error: %v", err)
		return
	}

	client := &websocket.Client{Hub: h.hub, Conn: conn, Send: make(chan []byte, 256)}
	h.hub.RegisterClient(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "cannot parse JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
