package nlquery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryTurns is the number of turns a Session keeps
const DefaultHistoryTurns = 5

// Turn is one answered question
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	SQL      string    `json:"sql,omitempty"`
	At       time.Time `json:"at"`
}

// Session holds the recent turns of one conversation in a ring buffer.
// A limit of zero keeps no history.
type Session struct {
	ID string

	mu       sync.Mutex
	turns    []Turn
	next     int
	full     bool
	lastUsed time.Time
	clock    func() time.Time
}

// NewSession creates a session keeping the last limit turns
func NewSession(id string, limit int) *Session {
	if limit < 0 {
		limit = 0
	}
	return &Session{
		ID:       id,
		turns:    make([]Turn, limit),
		lastUsed: time.Now(),
		clock:    time.Now,
	}
}

// Record appends a turn, evicting the oldest when the buffer is full
func (s *Session) Record(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = s.clock()
	if len(s.turns) == 0 {
		return
	}
	s.turns[s.next] = t
	s.next = (s.next + 1) % len(s.turns)
	if s.next == 0 {
		s.full = true
	}
}

// History returns the retained turns, oldest first
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history()
}

func (s *Session) history() []Turn {
	if !s.full {
		return append([]Turn(nil), s.turns[:s.next]...)
	}
	out := make([]Turn, 0, len(s.turns))
	out = append(out, s.turns[s.next:]...)
	return append(out, s.turns[:s.next]...)
}

// Context renders the retained turns as "User: q\nAI: a" blocks joined by
// newlines
func (s *Session) Context() string {
	turns := s.History()
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = "User: " + t.Question + "\nAI: " + t.Answer
	}
	return strings.Join(lines, "\n")
}

// Ask answers question with the session history as context and records
// the turn on success
func (s *Session) Ask(ctx context.Context, engine Answerer, question string) (*Answer, error) {
	ans, err := engine.Answer(ctx, question, s.Context())
	if err != nil {
		s.touch()
		return nil, err
	}
	s.Record(Turn{Question: ans.Question, Answer: ans.Answer, SQL: ans.SQL, At: time.Now().UTC()})
	return ans, nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.clock()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Sessions is a concurrency-safe registry of sessions with idle expiry
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	turns    int
	ttl      time.Duration
	now      func() time.Time
}

// NewSessions creates a registry whose sessions keep turns turns and expire
// after ttl without use. A zero ttl never expires sessions.
func NewSessions(turns int, ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		turns:    turns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// New registers a session under a fresh id
func (r *Sessions) New() *Session {
	s := NewSession(uuid.NewString(), r.turns)
	s.clock = func() time.Time { return r.now() }
	s.lastUsed = s.clock()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the live session for id
func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if r.expired(s) {
		delete(r.sessions, id)
		return nil, false
	}
	return s, true
}

// GetOrNew returns the session for id, or a new session when id is empty,
// unknown or expired
func (r *Sessions) GetOrNew(id string) *Session {
	if id != "" {
		if s, ok := r.Get(id); ok {
			return s
		}
	}
	return r.New()
}

// Delete drops the session for id
func (r *Sessions) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Prune removes expired sessions and returns how many were removed
func (r *Sessions) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if r.expired(s) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered sessions
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Sessions) expired(s *Session) bool {
	return r.ttl > 0 && r.now().Sub(s.idleSince()) > r.ttl
}
