// Package session keeps one isolated dashboard state per user: the Table it
// loaded at start and the filter selection last applied to it. Sessions never
// share tables.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"weodash/internal/engine"
	"weodash/internal/models"
)

// LoadFunc produces a fresh Table for a new session.
type LoadFunc func(ctx context.Context) (*engine.Table, error)

type Session struct {
	ID      string
	Created time.Time

	table *engine.Table

	mu        sync.Mutex
	selection models.FilterSelection
	lastUsed  time.Time
}

func (s *Session) Table() *engine.Table { return s.table }

// Selection returns a copy of the stored selection.
func (s *Session) Selection() models.FilterSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSelection(s.selection)
}

// Select validates and stores sel. An invalid selection leaves the previous
// one in place.
func (s *Session) Select(sel models.FilterSelection) error {
	if err := engine.Validate(sel); err != nil {
		return err
	}
	s.mu.Lock()
	s.selection = cloneSelection(sel)
	s.mu.Unlock()
	return nil
}

// View applies sel to the session's table.
func (s *Session) View(sel models.FilterSelection) (engine.View, error) {
	return engine.ApplyFilters(s.table, sel)
}

// CurrentView applies the stored selection and returns it alongside the view.
func (s *Session) CurrentView() (engine.View, models.FilterSelection, error) {
	sel := s.Selection()
	v, err := s.View(sel)
	return v, sel, err
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func cloneSelection(sel models.FilterSelection) models.FilterSelection {
	out := models.FilterSelection{
		Countries:    append([]string(nil), sel.Countries...),
		Regions:      append([]string(nil), sel.Regions...),
		IncomeGroups: append([]string(nil), sel.IncomeGroups...),
		Indicator:    sel.Indicator,
	}
	if sel.YearRange != nil {
		yr := *sel.YearRange
		out.YearRange = &yr
	}
	return out
}

// Registry owns the live sessions of one server. Sessions idle for longer
// than the TTL are dropped; at the cap, creating a session evicts the least
// recently used one. Zero disables either limit.
type Registry struct {
	load        LoadFunc
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Registry)

func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) { r.idleTTL = d }
}

func WithMaxSessions(n int) Option {
	return func(r *Registry) { r.maxSessions = n }
}

func NewRegistry(load LoadFunc, opts ...Option) *Registry {
	r := &Registry{
		load:     load,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create loads a new Table and registers a session around it.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	table, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	s := &Session{
		ID:       uuid.NewString(),
		Created:  now,
		table:    table,
		lastUsed: now,
	}

	r.mu.Lock()
	r.evictLocked(now)
	r.sessions[s.ID] = s
	r.mu.Unlock()

	log.Infof("session %s started: %d records (%d live)", s.ID, table.Len(), r.Len())
	return s, nil
}

// evictLocked drops expired sessions, then the least recently used ones
// until there is room for one more. r.mu must be held.
func (r *Registry) evictLocked(now time.Time) {
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			log.Infof("session %s expired", id)
		}
	}
	for r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		var oldest *Session
		for _, s := range r.sessions {
			if oldest == nil || s.idleSince().Before(oldest.idleSince()) {
				oldest = s
			}
		}
		delete(r.sessions, oldest.ID)
		log.Infof("session %s evicted (limit %d)", oldest.ID, r.maxSessions)
	}
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return r.idleTTL > 0 && now.Sub(s.idleSince()) > r.idleTTL
}

// Get returns a live session and marks it used. Expired sessions are
// removed on sight.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := r.now()
	if r.expired(s, now) {
		r.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		log.Infof("session %s closed (%d live)", id, r.Len())
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
