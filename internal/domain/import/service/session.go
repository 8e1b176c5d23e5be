package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/smart-import/internal/domain/import/analyzer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/lookup"
	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-import/internal/domain/import/wizard"
)

// Session is the in-memory state of one import wizard run.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time

	mu         sync.Mutex
	wizard     *wizard.Wizard
	table      *parser.Table
	analysis   *model.FileAnalysis
	validation analyzer.MappingValidation
	lookups    *lookup.Context
	prepared   *model.PreparedImportData
	result     *model.ImportResult
	fileID     uuid.UUID

	// metaMu guards touchedAt and cancel so the store and Cancel never wait
	// on a running import.
	metaMu    sync.Mutex
	touchedAt time.Time
	cancel    context.CancelFunc

	done  atomic.Int64
	total atomic.Int64
}

func (s *Session) setCancel(fn context.CancelFunc) {
	s.metaMu.Lock()
	s.cancel = fn
	s.metaMu.Unlock()
}

// release drops the parsed file and wizard progress. A running import
// keeps its state and settles it when it stops.
func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard.State() == wizard.StateImporting {
		return
	}
	s.wizard.Reset()
	s.table, s.prepared, s.lookups = nil, nil, nil
}

func (s *Session) stop() {
	s.metaMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.metaMu.Unlock()
}

// SessionStore holds sessions in memory and expires idle ones. Sessions
// are scoped to the user that created them.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[uuid.UUID]*Session
}

// NewSessionStore creates a store whose sessions expire after ttl without use.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (st *SessionStore) create(userID uuid.UUID) *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		wizard:    wizard.New(),
		touchedAt: now,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// get returns the session when it exists, belongs to userID and has not
// expired, and refreshes its expiry.
func (st *SessionStore) get(userID, id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok || s.UserID != userID {
		return nil, false
	}
	now := st.now()
	if now.Sub(s.lastTouch()) > st.ttl {
		return nil, false
	}
	s.touch(now)
	return s, true
}

func (st *SessionStore) remove(id uuid.UUID) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.sessions[id]
	delete(st.sessions, id)
	return s
}

// expire removes and returns every session idle for longer than the ttl.
// Sessions with an import in progress are kept.
func (st *SessionStore) expire() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	var out []*Session
	for id, s := range st.sessions {
		if now.Sub(s.lastTouch()) <= st.ttl || s.importing() {
			continue
		}
		delete(st.sessions, id)
		out = append(out, s)
	}
	return out
}

// Len returns the number of held sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (s *Session) touch(t time.Time) {
	s.metaMu.Lock()
	s.touchedAt = t
	s.metaMu.Unlock()
}

func (s *Session) lastTouch() time.Time {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.touchedAt
}

func (s *Session) importing() bool {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.cancel != nil
}
