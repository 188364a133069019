package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/platform/apperr"

	"github.com/google/uuid"
)

// memStore is an in-memory repository.Store. Each request has its own mutex to
// mirror the row lock; a transaction works on copies and commits only when the
// callback succeeds.
type memStore struct {
	mu        sync.Mutex
	locks     map[int64]*sync.Mutex
	createMu  sync.Mutex
	requests  map[int64]*domain.Request
	sessions  map[uuid.UUID]*domain.AmendmentSession
	activity  []domain.ActivityEntry
	nextID    int64
	bookingID int64

	orgs      map[int64]domain.Ref
	locations map[string]domain.Location
	agents    map[int64]domain.Ref
	services  map[int64]string

	failActivity bool
}

func newMemStore() *memStore {
	return &memStore{
		locks:    map[int64]*sync.Mutex{},
		requests: map[int64]*domain.Request{},
		sessions: map[uuid.UUID]*domain.AmendmentSession{},
		nextID:   100,
		orgs:     map[int64]domain.Ref{3: {ID: 3, Name: "Air Mobility Command"}},
		locations: map[string]domain.Location{
			"EGLL": {Code: "EGLL", Name: "Heathrow", Type: 1},
			"XNAS": {Code: "XNAS", Name: "Naval Air Station", Type: 8},
		},
		agents:   map[int64]domain.Ref{9: {ID: 9, Name: "Swissport"}, 10: {ID: 10, Name: "Menzies"}},
		services: map[int64]string{1: "Lavatory", 2: "Catering", 3: "Potable Water", 4: "GPU"},
	}
}

// seed stores r as if it had been committed earlier.
func (s *memStore) seed(r *domain.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := r.Clone()
	for i := range c.Services {
		if c.Services[i].ID == 0 {
			s.bookingID++
			c.Services[i].ID = s.bookingID
		}
	}
	if c.Session != nil {
		s.sessions[c.Session.ID] = c.Session.Clone()
	}
	s.requests[c.ID] = c
}

func (s *memStore) lockFor(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *memStore) WithRequestLock(ctx context.Context, requestID int64, fn func(repository.Tx) error) error {
	l := s.lockFor(requestID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	_, ok := s.requests[requestID]
	s.mu.Unlock()
	if !ok {
		return apperr.NotFound("request not found")
	}
	return s.run(fn)
}

func (s *memStore) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	return s.run(fn)
}

func (s *memStore) run(fn func(repository.Tx) error) error {
	tx := &memTx{
		s:        s,
		requests: map[int64]*domain.Request{},
		sessions: map[uuid.UUID]*domain.AmendmentSession{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range tx.requests {
		s.requests[id] = r
	}
	for id, sess := range tx.sessions {
		s.sessions[id] = sess
	}
	s.activity = append(s.activity, tx.activity...)
	return nil
}

func (s *memStore) GetRequest(ctx context.Context, id int64) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("request not found")
	}
	return s.hydrate(r), nil
}

// hydrate clones r and attaches its committed open session the way the
// repository does. Callers hold s.mu.
func (s *memStore) hydrate(r *domain.Request) *domain.Request {
	c := r.Clone()
	c.Session = nil
	for _, sess := range s.sessions {
		if sess.RequestID == r.ID && sess.Open {
			c.Session = sess.Clone()
			break
		}
	}
	return c
}

// openSessions returns the committed open sessions of a request.
func (s *memStore) openSessions(requestID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.RequestID == requestID && sess.Open {
			n++
		}
	}
	return n
}

func (s *memStore) activityFor(requestID int64) []domain.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ActivityEntry
	for _, e := range s.activity {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out
}

type memTx struct {
	s        *memStore
	requests map[int64]*domain.Request
	sessions map[uuid.UUID]*domain.AmendmentSession
	activity []domain.ActivityEntry
}

func (t *memTx) LoadRequest(ctx context.Context, id int64) (*domain.Request, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.requests[id]
	if !ok {
		if r, ok = t.s.requests[id]; !ok {
			return nil, apperr.NotFound("request not found")
		}
	}
	c := r.Clone()
	c.Session = t.openSession(id)
	return c, nil
}

// openSession prefers the staged state of a session over the committed one.
// Callers hold s.mu.
func (t *memTx) openSession(requestID int64) *domain.AmendmentSession {
	for _, sess := range t.sessions {
		if sess.RequestID == requestID && sess.Open {
			return sess.Clone()
		}
	}
	for id, sess := range t.s.sessions {
		if _, staged := t.sessions[id]; staged {
			continue
		}
		if sess.RequestID == requestID && sess.Open {
			return sess.Clone()
		}
	}
	return nil
}

func (t *memTx) InsertRequest(ctx context.Context, req *domain.Request) (int64, error) {
	t.s.mu.Lock()
	t.s.nextID++
	id := t.s.nextID
	t.s.mu.Unlock()

	c := req.Clone()
	c.ID = id
	t.assignBookingIDs(c)
	c.Session = nil
	t.requests[id] = c
	return id, nil
}

func (t *memTx) assignBookingIDs(r *domain.Request) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := range r.Services {
		if r.Services[i].ID == 0 {
			t.s.bookingID++
			r.Services[i].ID = t.s.bookingID
		}
	}
}

func (t *memTx) SaveRequest(ctx context.Context, req *domain.Request) error {
	c := req.Clone()
	t.assignBookingIDs(c)
	if sess := c.Session; sess != nil {
		if sess.Open {
			t.s.mu.Lock()
			other := t.openSession(c.ID)
			t.s.mu.Unlock()
			if other != nil && other.ID != sess.ID {
				return apperr.Conflict("concurrent modification detected, retry")
			}
		}
		t.sessions[sess.ID] = sess.Clone()
	}
	c.Session = nil
	t.requests[c.ID] = c
	return nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	r, err := t.LoadRequest(ctx, id)
	if err != nil {
		return err
	}
	r.Status = status
	r.Session = nil
	t.requests[id] = r
	return nil
}

func (t *memTx) CountOpenSessions(ctx context.Context, id int64) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, sess := range t.sessions {
		if sess.RequestID == id && sess.Open {
			n++
		}
	}
	for sid, sess := range t.s.sessions {
		if _, staged := t.sessions[sid]; staged {
			continue
		}
		if sess.RequestID == id && sess.Open {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LockOrganisation(ctx context.Context, organisationID int64) error { return nil }

func (t *memTx) HasOverlapping(ctx context.Context, req *domain.Request) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, other := range t.s.requests {
		if id == req.ID || other.Cancelled {
			continue
		}
		if domain.Overlaps(req, other) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) AppendActivity(ctx context.Context, entries []domain.ActivityEntry) error {
	if t.s.failActivity {
		return errors.New("activity log unavailable")
	}
	t.activity = append(t.activity, entries...)
	return nil
}

func (t *memTx) LookupOrganisation(ctx context.Context, id int64) (domain.Ref, error) {
	if ref, ok := t.s.orgs[id]; ok {
		return ref, nil
	}
	return domain.Ref{}, apperr.Validation("unknown organisation")
}

func (t *memTx) LookupLocation(ctx context.Context, code string) (domain.Location, error) {
	if loc, ok := t.s.locations[code]; ok {
		return loc, nil
	}
	return domain.Location{}, apperr.Validation("unknown location")
}

func (t *memTx) LookupHandlingAgent(ctx context.Context, id int64) (domain.Ref, error) {
	if ref, ok := t.s.agents[id]; ok {
		return ref, nil
	}
	return domain.Ref{}, apperr.Validation("unknown handling agent")
}

func (t *memTx) LookupService(ctx context.Context, id int64) (string, error) {
	if name, ok := t.s.services[id]; ok {
		return name, nil
	}
	return "", apperr.Validation("unknown service")
}

var _ repository.Store = (*memStore)(nil)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
