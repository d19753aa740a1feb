package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/freecoach/internal/dashboard"
	"github.com/claude/freecoach/internal/logging"
	"github.com/claude/freecoach/internal/metrics"
)

// CacheControl drops cached source records. source.Cache implements it.
type CacheControl interface {
	Invalidate(studentID int64)
	InvalidateAll()
}

// Deps are the collaborators of the HTTP API. Cache, Refresher, Metrics,
// Gatherer and WhoIs are optional.
type Deps struct {
	Loader    *dashboard.Loader
	Tracker   *dashboard.Tracker
	Refresher *dashboard.Refresher
	Cache     CacheControl
	Metrics   *metrics.Manager
	Gatherer  prometheus.Gatherer
	WhoIs     WhoIsClient
	APIKey    string
	Log       *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	if d.Tracker == nil {
		d.Tracker = dashboard.NewTracker(d.Metrics)
	}
	s := &Server{Deps: d, router: chi.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestID)
	s.router.Use(RequestLogging(s.Log))
	if s.Metrics != nil {
		s.router.Use(Instrument(s.Metrics))
	}
	s.router.Use(CORS)
	if s.WhoIs != nil {
		s.router.Use(TailscaleIdentity(s.WhoIs, s.Log))
	} else {
		s.router.Use(DevIdentity)
	}

	s.router.Get("/healthz", s.handleHealth)
	if s.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/students", s.handleListStudents)
		r.Get("/finance", s.handleFinance)
		r.Get("/current", s.handleCurrent)

		r.Route("/students/{id}", func(r chi.Router) {
			r.Get("/volume", s.handleVolume)
			r.Get("/adherence", s.handleAdherence)
			r.Get("/adherence/history", s.handleAdherenceHistory)
			r.Get("/credits", s.handleCredits)
			r.Get("/report", s.handleReport)
			r.Get("/sessions", s.handleSessions)

			r.With(APIKeyAuth(s.APIKey)).Post("/refresh", s.handleRefresh)
		})

		r.With(APIKeyAuth(s.APIKey)).Post("/cache/invalidate", s.handleInvalidate)
	})
}
