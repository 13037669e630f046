package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "finanse/internal/log"
	"finanse/internal/middleware/ratelimit"
	"finanse/internal/middleware/security"
	"finanse/internal/middleware/trace"
	"finanse/internal/services"
)

// Pinger checks that a storage backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueHealth reports whether the merge queue is reachable.
type QueueHealth interface {
	Healthy() bool
}

// Deps are the services the API serves. Backend and Queue are optional; a
// zero RateLimit uses ratelimit.DefaultConfig.
type Deps struct {
	Report     *services.ReportService
	Merge      *services.MergeService
	Milestones *services.MilestoneService
	Backend    Pinger
	Queue      QueueHealth
	Logger     *applog.Logger
	RateLimit  ratelimit.Config
}

type appMetrics struct {
	reports    int64
	merges     int64
	retries    int64
	milestones int64
	uptime     time.Time
}

type Server struct {
	http.Server
	report     *services.ReportService
	merge      *services.MergeService
	milestones *services.MilestoneService
	backend    Pinger
	queue      QueueHealth

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Report == nil || deps.Merge == nil || deps.Milestones == nil {
		return nil, errors.New("server needs report, merge and milestone services")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent("http")
	}

	limits := deps.RateLimit
	if limits.RequestsPerWindow == 0 && len(limits.Methods) == 0 {
		limits = ratelimit.DefaultConfig()
	}

	detector := security.NewDetector()
	s := &Server{
		report:           deps.Report,
		merge:            deps.Merge,
		milestones:       deps.Milestones,
		backend:          deps.Backend,
		queue:            deps.Queue,
		rateLimiter:      ratelimit.NewLimiter(limits),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/limits", s.handleLimits)
	mux.HandleFunc("/api/duplicates", s.handleDuplicates)
	mux.HandleFunc("/api/merge", s.handleMerge)
	mux.HandleFunc("/api/merge/retry", s.handleMergeRetry)
	mux.HandleFunc("/api/milestones", s.handleMilestones)
	mux.HandleFunc("/api/milestones/{id}", s.handleMilestone)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})

	// outermost first
	chain := []func(http.Handler) http.Handler{
		applog.Middleware(logger),
		s.traceMiddleware.Middleware,
		applog.RequestIDMiddleware(trace.RequestID),
		s.securityDetector.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", detector.ExtractClientIP(r),
				"method", r.Method,
				"url", r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		}),
	}
	var handler http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
