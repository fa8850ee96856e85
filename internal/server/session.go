package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safequote/safequote/pkg/events"
	"github.com/safequote/safequote/pkg/filter"
	"github.com/sirupsen/logrus"
)

const sessionCookie = "safequote_session"

// session is one browser's controller together with its event bus.
type session struct {
	id       string
	ctrl     *filter.Controller
	bus      *events.Bus[events.SearchCompleted]
	notifier *lastNotifier

	initMu      sync.Mutex
	initialized bool

	lastSeen time.Time // guarded by sessionStore.mu
}

// ensureInitialized runs Initialize until it succeeds once.
func (sess *session) ensureInitialized(ctx context.Context) error {
	sess.initMu.Lock()
	defer sess.initMu.Unlock()
	if sess.initialized {
		return nil
	}
	if err := sess.ctrl.Initialize(ctx); err != nil {
		return err
	}
	sess.initialized = true
	return nil
}

func (s *Server) newSession(id string) *session {
	log := s.log.WithField("session", id)
	bus := events.NewBus[events.SearchCompleted](func(r interface{}) {
		log.Errorf("%v", r)
	})
	if s.onSearch != nil {
		bus.Subscribe(s.onSearch)
	}
	notifier := &lastNotifier{log: log}
	return &session{
		id:       id,
		bus:      bus,
		notifier: notifier,
		ctrl: filter.New(s.backend, s.cfg, filter.Options{
			Log:         log,
			Notifier:    notifier,
			Bus:         bus,
			CountFormat: s.labels.VehiclesFound,
		}),
	}
}

type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
	create   func(id string) *session
	now      func() time.Time
}

func newSessionStore(ttl time.Duration, create func(id string) *session) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]*session),
		create:   create,
		now:      time.Now,
	}
}

// get returns the live session with id.
func (st *sessionStore) get(id string) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.expireLocked()
	sess, ok := st.sessions[id]
	if ok {
		sess.lastSeen = st.now()
	}
	return sess, ok
}

// start creates a session under a fresh id.
func (st *sessionStore) start() *session {
	sess := st.create(uuid.NewString())
	st.mu.Lock()
	defer st.mu.Unlock()
	st.expireLocked()
	sess.lastSeen = st.now()
	st.sessions[sess.id] = sess
	return sess
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *sessionStore) expireLocked() {
	cutoff := st.now().Add(-st.ttl)
	for id, sess := range st.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(st.sessions, id)
		}
	}
}

// session returns the request's session, starting one and setting the
// cookie when there is none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	if sess, ok := s.existingSession(r); ok {
		return sess
	}
	sess := s.sessions.start()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Server) existingSession(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return nil, false
	}
	return s.sessions.get(c.Value)
}

// lastNotifier keeps the most recent notification until it is shown.
type lastNotifier struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	level   string
	message string
}

func (n *lastNotifier) Notify(level, message string) {
	n.log.WithField("level", level).Info(message)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.level, n.message = level, message
}

// take returns and clears the pending notification.
func (n *lastNotifier) take() (level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	level, message = n.level, n.message
	n.level, n.message = "", ""
	return level, message
}
