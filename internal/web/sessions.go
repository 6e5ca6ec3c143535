package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/orchestrator"
)

const (
	cookieName = "weather-lookup"
	profileKey = "profile"
)

// SessionConfig controls the session cookie and registry.
type SessionConfig struct {
	Secret string // empty generates a per-process key; sessions then end on restart
	TTL    time.Duration
	Secure bool
}

// Session is one browser's orchestrator and the presenter it renders into.
// ProfileID keys the favorites store.
type Session struct {
	ProfileID    string
	Orchestrator *orchestrator.Orchestrator
	Page         *PagePresenter

	startOnce sync.Once
}

// startup runs fn on the first call for this session only.
func (s *Session) startup(fn func()) {
	s.startOnce.Do(fn)
}

// OrchestratorFactory builds the orchestrator for a new session.
type OrchestratorFactory func(profileID string, presenter orchestrator.Presenter) *orchestrator.Orchestrator

// Sessions maps a signed profile cookie to a live Session. Idle sessions
// expire from the registry after TTL; the cookie and the favorites outlive
// them.
type Sessions struct {
	cookies  *sessions.CookieStore
	registry *gocache.Cache
	ttl      time.Duration
	factory  OrchestratorFactory

	createMu sync.Mutex
}

// NewSessions creates the cookie store and registry.
func NewSessions(cfg SessionConfig, factory OrchestratorFactory) (*Sessions, error) {
	if factory == nil {
		return nil, fmt.Errorf("sessions: factory is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		if secret == nil {
			return nil, fmt.Errorf("sessions: generate cookie key")
		}
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{
		cookies:  cookies,
		registry: gocache.New(ttl, ttl/2),
		ttl:      ttl,
		factory:  factory,
	}, nil
}

// Get returns the caller's session, creating the profile cookie and the
// orchestrator on first contact. Each call slides both expirations.
func (s *Sessions) Get(w http.ResponseWriter, r *http.Request) (*Session, error) {
	logger := observability.LoggerFrom(r.Context(), zap.NewNop())

	cs, err := s.cookies.Get(r, cookieName)
	if err != nil {
		// Tampered or signed with an old key: start over with a fresh profile.
		logger.Debug("discarding unreadable session cookie", zap.Error(err))
	}
	profile, _ := cs.Values[profileKey].(string)
	if _, perr := uuid.Parse(profile); perr != nil {
		profile = uuid.NewString()
		cs.Values[profileKey] = profile
	}
	if err := cs.Save(r, w); err != nil {
		return nil, fmt.Errorf("save session cookie: %w", err)
	}
	return s.lookup(profile), nil
}

func (s *Sessions) lookup(profile string) *Session {
	if v, ok := s.registry.Get(profile); ok {
		sess := v.(*Session)
		s.registry.Set(profile, sess, s.ttl)
		return sess
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	if v, ok := s.registry.Get(profile); ok {
		return v.(*Session)
	}
	page := NewPagePresenter()
	sess := &Session{
		ProfileID:    profile,
		Orchestrator: s.factory(profile, page),
		Page:         page,
	}
	s.registry.Set(profile, sess, s.ttl)
	return sess
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	return s.registry.ItemCount()
}
