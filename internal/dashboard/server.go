// Package dashboard serves the local live dashboard: an index page fed by a
// server-sent event stream, a JSON snapshot, the admin config form and
// prometheus metrics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweeney/complex-monitor/internal/config"
	"github.com/sweeney/complex-monitor/internal/metrics"
	"github.com/sweeney/complex-monitor/internal/status"
)

const (
	// sseWriteTimeout bounds a single event write to a slow client.
	sseWriteTimeout = 5 * time.Second

	defaultEventTTL = time.Minute
)

// Options configures a Server.
type Options struct {
	Addr    string
	Tracker *status.Tracker

	// Store backs the admin form. Nil disables /config.
	Store  config.Store
	Secret string
	BootID string

	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// EventTTL is how long the latest event of each name is replayed to
	// new clients.
	EventTTL time.Duration

	// FormRate and FormBurst limit config submissions per client address.
	FormRate  rate.Limit
	FormBurst int
}

// Server is the dashboard transport.
type Server struct {
	opts       Options
	hub        *Hub
	logger     *zap.Logger
	httpServer *http.Server
	router     chi.Router

	// baseCtx is cancelled on Stop so event streams end before Shutdown waits.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a Server. It does not listen until Start.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.EventTTL <= 0 {
		opts.EventTTL = defaultEventTTL
	}
	if opts.FormRate == 0 {
		opts.FormRate = rate.Every(time.Second)
	}
	if opts.FormBurst <= 0 {
		opts.FormBurst = 3
	}

	s := &Server{
		opts:   opts,
		hub:    NewHub(opts.EventTTL),
		logger: opts.Logger,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Get("/events", s.handleEvents)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	if s.opts.Store != nil {
		limiter := newIPRateLimiter(s.opts.FormRate, s.opts.FormBurst, limiterIdleTTL)
		r.Get("/config", s.handleConfigForm)
		r.With(limiter.middleware).Post("/config", s.handleConfigSubmit)
		r.Get("/config-done", s.handleConfigDone)
	}
	return r
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured address and serves until Stop.
// It blocks; a bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("dashboard listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dashboard listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Push sends a named event to every connected client.
func (s *Server) Push(event string, v any) error {
	if err := s.hub.Publish(event, v); err != nil {
		return err
	}
	s.opts.Metrics.DashboardPush(event)
	return nil
}

// Stop ends event streams and shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderIndex(w, snap, s.opts.Store != nil); err != nil {
		s.logger.Warn("render index", zap.Error(err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(status.FormatJSON(snap))
}

// handleEvents streams hub events as server-sent events. The latest cached
// event of each name is sent first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	rc := http.NewResponseController(w)
	deadlines := true

	write := func(ev Event) error {
		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				deadlines = false
			}
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, ev.Data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	for _, ev := range s.hub.Latest() {
		if err := write(ev); err != nil {
			return
		}
	}
	// Headers reach the client even when nothing is cached yet.
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := write(ev); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
