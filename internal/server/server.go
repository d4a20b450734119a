// Package server exposes the dashboard as a local HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/derickschaefer/bankview/internal/dashboard"
	"github.com/derickschaefer/bankview/internal/model"
)

// maxBodyBytes caps POSTed tables.
const maxBodyBytes = 16 << 20

// Options configures a Server.
type Options struct {
	RatePerSec float64 // zero disables rate limiting
	Burst      int     // zero means max(1, RatePerSec)
	Logger     *slog.Logger
}

// Server routes API requests to a Dashboard.
type Server struct {
	dash    *dashboard.Dashboard
	log     *slog.Logger
	limiter *rate.Limiter
	router  chi.Router
}

// New builds the router.
func New(d *dashboard.Dashboard, opts Options) *Server {
	s := &Server{dash: d, log: opts.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = max(1, int(opts.RatePerSec))
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/banks", s.handleBanks)
		r.Get("/table", s.handleTable)
		r.Get("/charts", s.handleCharts)
		r.Post("/charts", s.handleChartsFromTable)
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// ─── Middleware ───────────────────────────────────────────────────────────────

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("rate limit exceeded", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, errors.New(http.StatusText(http.StatusTooManyRequests)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

type banksResponse struct {
	model.BankList
	CacheHit bool `json:"cache_hit"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	list, hit, err := s.dash.LargestBanks(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, banksResponse{BankList: list, CacheHit: hit})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t, status, err := s.tableFor(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	t, status, err := s.tableFor(r)
	if err != nil {
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.Charts(t))
}

func (s *Server) handleChartsFromTable(w http.ResponseWriter, r *http.Request) {
	var t model.WideTable
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding table: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, s.dash.Charts(&t))
}

// tableFor resolves the bank query parameters against the ranked listing
// and fetches their table. No bank parameters means the empty selection.
func (s *Server) tableFor(r *http.Request) (*model.WideTable, int, error) {
	input := r.URL.Query()["bank"]
	var names []string
	if len(input) > 0 {
		list, _, err := s.dash.LargestBanks(r.Context())
		if err != nil {
			return nil, http.StatusBadGateway, err
		}
		if names, err = dashboard.ResolveBanks(input, list.Names); err != nil {
			return nil, http.StatusBadRequest, err
		}
	}
	t, err := s.dash.Table(r.Context(), names)
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	return t, http.StatusOK, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: encoding response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
