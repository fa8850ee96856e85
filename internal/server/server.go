package server

import (
	"context"
	"net/http"
	"time"

	"github.com/safequote/safequote/pkg/ajax"
	"github.com/safequote/safequote/pkg/events"
	"github.com/safequote/safequote/pkg/filter"
	"github.com/safequote/safequote/pkg/render"
	"github.com/sirupsen/logrus"
)

const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second

	DEFAULT_TITLE       = "SafeQuote Vehicle Search"
	DEFAULT_SESSION_TTL = 2 * time.Hour
)

// Options configures a Server. Only Backend and Config are required.
type Options struct {
	Backend filter.Backend
	Config  ajax.Config
	Labels  render.Labels
	Title   string
	Log     logrus.FieldLogger

	// OnSearch, when set, receives every search completed in any session.
	OnSearch func(events.SearchCompleted)

	SessionTTL time.Duration
}

// Server is the web front: one filter controller per browser session,
// re-rendered as htmx fragments.
type Server struct {
	backend  filter.Backend
	cfg      ajax.Config
	labels   render.Labels
	title    string
	log      logrus.FieldLogger
	onSearch func(events.SearchCompleted)

	sessions   *sessionStore
	httpServer *http.Server
}

func New(opts Options) *Server {
	s := &Server{
		backend:  opts.Backend,
		cfg:      opts.Config,
		labels:   opts.Labels.WithDefaults(),
		title:    opts.Title,
		log:      opts.Log,
		onSearch: opts.OnSearch,
	}
	if s.title == "" {
		s.title = DEFAULT_TITLE
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		s.log = l
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DEFAULT_SESSION_TTL
	}
	s.sessions = newSessionStore(ttl, s.newSession)
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /filters/year", s.handleYear)
	mux.HandleFunc("POST /filters/make", s.handleMake)
	mux.HandleFunc("POST /filters/model", s.handleModel)
	mux.HandleFunc("POST /filters/rating", s.handleRating)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.logRequests(mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on %s", addr)
		errc <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Handled request")
	})
}
