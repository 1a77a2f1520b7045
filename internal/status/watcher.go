package status

import (
	"context"
	"log"
	"sync"
	"time"

	"ujian-proctor-gateway/internal/data"
)

// Store is the authoritative student-status store, read-only from here.
type Store interface {
	ListStudents(ctx context.Context) ([]data.StudentStatus, error)
	CountByStatus(ctx context.Context) (map[data.Status]int, error)
}

// Broadcaster receives the full new snapshot whenever a change is detected.
type Broadcaster interface {
	BroadcastSnapshot(students []data.StudentStatus)
}

// Watcher polls the store at a fixed interval and broadcasts only when the
// fleet's id->status mapping actually changed. The loop is single-flight:
// a tick's query, diff and broadcast complete before the next tick starts,
// so lastKnown is only ever touched sequentially.
type Watcher struct {
	store    Store
	hub      Broadcaster
	interval time.Duration

	mu        sync.RWMutex
	lastKnown []data.StudentStatus
	lastIndex map[string]data.Status
}

func NewWatcher(store Store, hub Broadcaster, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		store:    store,
		hub:      hub,
		interval: interval,
	}
}

// SetBroadcaster wires the fan-out target after construction. The hub needs
// the watcher for initial snapshots, so one of the two is set late. Must be
// called before Run.
func (w *Watcher) SetBroadcaster(hub Broadcaster) {
	w.hub = hub
}

// Run blocks until ctx is canceled. A failed store query logs and skips the
// tick; the loop never dies on poll errors.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// prime the snapshot so early dashboard connects see current state
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("status watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	students, err := w.store.ListStudents(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("status watcher: store query failed, skipping tick: %v", err)
		}
		return
	}

	index := make(map[string]data.Status, len(students))
	for _, st := range students {
		index[st.ID] = st.Status
	}

	w.mu.RLock()
	same := equalIndex(w.lastIndex, index)
	w.mu.RUnlock()
	if same {
		return
	}

	// broadcast the full new snapshot, then replace lastKnown atomically
	if w.hub != nil {
		w.hub.BroadcastSnapshot(students)
	}
	w.mu.Lock()
	w.lastKnown = students
	w.lastIndex = index
	w.mu.Unlock()
}

// equalIndex reports whether two id->status mappings are identical: no id
// added, none missing, none with a different status. A nil previous index
// (before the first successful tick) always counts as changed.
func equalIndex(a, b map[string]data.Status) bool {
	if a == nil || len(a) != len(b) {
		return false
	}
	for id, st := range a {
		if other, ok := b[id]; !ok || other != st {
			return false
		}
	}
	return true
}

// Current returns the cached snapshot for initial subscriber sync. The
// returned slice is a copy; callers may not see changes made after the call.
func (w *Watcher) Current() []data.StudentStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]data.StudentStatus, len(w.lastKnown))
	copy(out, w.lastKnown)
	return out
}

// Counts answers the aggregate dashboard query straight from the store,
// independent of the cached snapshot.
func (w *Watcher) Counts(ctx context.Context) (map[data.Status]int, error) {
	return w.store.CountByStatus(ctx)
}
