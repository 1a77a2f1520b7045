package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"ujian-proctor-gateway/internal/data"
)

const maxViolationBuffer = 500

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrAlreadyInExam   = errors.New("student already in exam")
)

type studentRecord struct {
	data.StudentStatus
	SessionID string
	UjianID   string
}

// MemoryStore is the in-memory authoritative store for student sessions and
// violation records. It stands in for the portal's database, which the
// monitoring subsystem only ever reads through the status interfaces.
type MemoryStore struct {
	mu         sync.RWMutex
	students   map[string]*studentRecord
	violations []data.ViolationEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students: make(map[string]*studentRecord),
	}
}

// AddStudent registers a student, initially ONLINE.
func (s *MemoryStore) AddStudent(st data.StudentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Status == "" {
		st.Status = data.StatusOnline
	}
	s.students[st.ID] = &studentRecord{StudentStatus: st}
}

// ListStudents returns a copy of every student's identity and status,
// ordered by name then id so snapshots compare and render stably.
func (s *MemoryStore) ListStudents(ctx context.Context) ([]data.StudentStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]data.StudentStatus, 0, len(s.students))
	for _, rec := range s.students {
		out = append(out, rec.StudentStatus)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountByStatus aggregates students per status, computed fresh on each call.
func (s *MemoryStore) CountByStatus(ctx context.Context) (map[data.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[data.Status]int)
	for _, rec := range s.students {
		counts[rec.Status]++
	}
	return counts, nil
}

// EnterExam transitions a student to IN_EXAM and mints a session id.
func (s *MemoryStore) EnterExam(siswaDetailID, ujianID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.students[siswaDetailID]
	if !ok {
		return "", errors.Wrap(ErrStudentNotFound, siswaDetailID)
	}
	if rec.Status == data.StatusInExam {
		return "", errors.Wrap(ErrAlreadyInExam, siswaDetailID)
	}
	rec.Status = data.StatusInExam
	rec.SessionID = uuid.NewString()
	rec.UjianID = ujianID
	return rec.SessionID, nil
}

// FinishExam marks a student EXAM_DONE.
func (s *MemoryStore) FinishExam(siswaDetailID string) error {
	return s.setStatus(siswaDetailID, data.StatusExamDone)
}

// ForceLogout ends a student's session, marking them OFFLINE. This is the
// termination collaborator the escalation path invokes.
func (s *MemoryStore) ForceLogout(siswaDetailID string) error {
	return s.setStatus(siswaDetailID, data.StatusOffline)
}

// SetStatus applies an arbitrary status transition (heartbeat updates).
func (s *MemoryStore) SetStatus(siswaDetailID string, status data.Status) error {
	return s.setStatus(siswaDetailID, status)
}

func (s *MemoryStore) setStatus(siswaDetailID string, status data.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.students[siswaDetailID]
	if !ok {
		return errors.Wrap(ErrStudentNotFound, siswaDetailID)
	}
	rec.Status = status
	if status == data.StatusOffline || status == data.StatusExamDone {
		rec.SessionID = ""
	}
	return nil
}

// AddViolation appends a violation record, evicting the oldest past the cap.
func (s *MemoryStore) AddViolation(ev data.ViolationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.violations) >= maxViolationBuffer {
		s.violations = s.violations[1:]
	}
	s.violations = append(s.violations, ev)
}

// RecentViolations returns up to count most recent violation records.
func (s *MemoryStore) RecentViolations(count int) []data.ViolationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if count <= 0 || count > len(s.violations) {
		count = len(s.violations)
	}
	out := make([]data.ViolationEvent, count)
	copy(out, s.violations[len(s.violations)-count:])
	return out
}
