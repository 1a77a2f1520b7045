package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ujian-proctor-gateway/internal/alerting"
	"ujian-proctor-gateway/internal/auth"
	"ujian-proctor-gateway/internal/config"
	"ujian-proctor-gateway/internal/data"
	"ujian-proctor-gateway/internal/geo"
	"ujian-proctor-gateway/internal/status"
	"ujian-proctor-gateway/internal/storage"
)

const (
	testAPIKey   = "exam-client-key"
	testPassword = "rahasia123"
	refLat       = -6.175392
	refLon       = 106.827153
)

type testEnv struct {
	store      *storage.MemoryStore
	dataServer *httptest.Server
	uiServer   *httptest.Server
	authMgr    *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTExpiration = 60
	cfg.Auth.APIKeys = []string{testAPIKey}
	cfg.Auth.Users = []config.User{{Username: "pengawas", PasswordHash: string(hash), Role: "proctor"}}

	store := storage.NewMemoryStore()
	store.AddStudent(data.StudentStatus{ID: "s1", Name: "Ani", NIS: "1001", Kelas: data.Kelas{Tingkat: "XII", Jurusan: "IPA"}})

	watcher := status.NewWatcher(store, nil, time.Second)
	notifier := alerting.NewNotifier(nil)
	authMgr := auth.NewManager(cfg)
	fence := geo.Fence{Latitude: refLat, Longitude: refLon, Radius: 100, MinAccuracy: 0.5}

	h := NewAPIHandler(store, watcher, nil, notifier, authMgr, fence)

	env := &testEnv{
		store:      store,
		dataServer: httptest.NewServer(SetupDataRouter(h, authMgr)),
		uiServer:   httptest.NewServer(SetupUIRouter(h, authMgr)),
		authMgr:    authMgr,
	}
	t.Cleanup(env.dataServer.Close)
	t.Cleanup(env.uiServer.Close)
	return env
}

func (env *testEnv) post(t *testing.T, path string, body interface{}, withKey bool) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, env.dataServer.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withKey {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (env *testEnv) studentStatus(t *testing.T, id string) data.Status {
	t.Helper()
	students, err := env.store.ListStudents(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, st := range students {
		if st.ID == id {
			return st.Status
		}
	}
	t.Fatalf("student %s not found", id)
	return ""
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/login", map[string]string{"username": "pengawas", "password": testPassword}, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["token"] == "" || body["role"] != "proctor" {
		t.Fatalf("bad login response: %+v", body)
	}

	resp = env.post(t, "/api/login", map[string]string{"username": "pengawas", "password": "salah"}, false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", resp.StatusCode)
	}
}

func TestExamEntry_FakeGPSRejectedImmediately(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/ujian/u1/masuk", map[string]interface{}{
		"siswaDetailId": "s1",
		"latitude":      refLat,
		"longitude":     refLon,
		"accuracy":      0.3,
	}, true)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("fake GPS status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Fake GPS detected" {
		t.Fatalf("wrong error message: %q", body["error"])
	}
	if got := env.studentStatus(t, "s1"); got != data.StatusOnline {
		t.Fatalf("no session may be created on rejection, status = %s", got)
	}
}

func TestExamEntry_OutsideFenceRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/ujian/u1/masuk", map[string]interface{}{
		"siswaDetailId": "s1",
		"latitude":      refLat + 0.01, // ~1.1km away
		"longitude":     refLon,
		"accuracy":      10.0,
	}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outside fence status = %d", resp.StatusCode)
	}
}

func TestExamEntry_InsideFenceCreatesSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/ujian/u1/masuk", map[string]interface{}{
		"siswaDetailId": "s1",
		"latitude":      refLat,
		"longitude":     refLon,
		"accuracy":      12.0,
	}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("entry status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["sessionId"] == "" {
		t.Fatal("no session id returned")
	}
	if got := env.studentStatus(t, "s1"); got != data.StatusInExam {
		t.Fatalf("status = %s, want IN_EXAM", got)
	}
}

func TestViolationFallbackIngest(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/ujian/u1/pelanggaran", map[string]interface{}{
		"siswaDetailId": "s1",
		"type":          "TAB_HIDDEN",
		"timestamp":     time.Now().UnixMilli(),
	}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}

	recent := env.store.RecentViolations(1)
	if len(recent) != 1 || recent[0].Kind != data.KindTabHidden || recent[0].UjianID != "u1" {
		t.Fatalf("violation not stored: %+v", recent)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/ujian/u1/pelanggaran", map[string]interface{}{"type": "TAB_HIDDEN"}, false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d", resp.StatusCode)
	}
}

func TestForceLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/sesi/s1/logout-paksa", map[string]string{}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	if got := env.studentStatus(t, "s1"); got != data.StatusOffline {
		t.Fatalf("status = %s, want OFFLINE", got)
	}
}

func TestCountsRequiresJWT(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.uiServer.URL + "/api/monitoring/jumlah")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated counts status = %d", resp.StatusCode)
	}

	token, err := env.authMgr.GenerateJWT("pengawas", "proctor")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, env.uiServer.URL+"/api/monitoring/jumlah", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("counts status = %d", resp.StatusCode)
	}

	var counts map[data.Status]int
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if counts[data.StatusOnline] != 1 {
		t.Fatalf("wrong counts: %+v", counts)
	}
}
