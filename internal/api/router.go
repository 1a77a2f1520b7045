package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ujian-proctor-gateway/internal/auth"
)

// SetupDataRouter serves the student-facing side: login, exam entry, the
// violation channel and its HTTP fallback, and session transitions.
func SetupDataRouter(apiHandler *APIHandler, authMgr *auth.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/login", apiHandler.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(authMgr.APIKeyMiddleware)
		r.Post("/api/siswa", apiHandler.HandleRegisterStudent)
		r.Post("/api/ujian/{ujianId}/masuk", apiHandler.HandleExamEntry)
		r.Post("/api/ujian/{ujianId}/pelanggaran", apiHandler.HandleViolationIngest)
		r.Post("/api/sesi/{siswaDetailId}/selesai", apiHandler.HandleFinishExam)
		r.Post("/api/sesi/{siswaDetailId}/logout-paksa", apiHandler.HandleForceLogout)
		r.Get("/ws/ujian/{ujianId}/{siswaDetailId}", apiHandler.HandleStudentWS)
	})

	return r
}

// SetupUIRouter serves the proctor-facing side: the dashboard push channel
// and the aggregate counts query, both JWT-guarded.
func SetupUIRouter(apiHandler *APIHandler, authMgr *auth.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(authMgr.JWTMiddleware)
		r.Get("/ws/monitoring-siswa", apiHandler.HandleDashboardWS)
		r.Get("/api/monitoring/jumlah", apiHandler.HandleCounts)
	})

	return r
}
