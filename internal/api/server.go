// Package api provides the GreenCredits HTTP server.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/app/accounts"
	"github.com/greencredits/greencredits/internal/app/reports"
	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/observability"
	"github.com/greencredits/greencredits/internal/infra/photostore"
	"github.com/greencredits/greencredits/internal/logger"
)

// Deps are the services the server exposes.
type Deps struct {
	Accounts    *accounts.Service
	Reports     *reports.Service
	Engine      *rewards.Engine
	Leaderboard *rewards.Leaderboard
	Photos      *photostore.Store
	Sessions    *Sessions
	Logger      *zap.Logger
}

// Server is the GreenCredits HTTP API server.
type Server struct {
	auth           *AuthAPI
	credits        *CreditsAPI
	reports        *ReportsAPI
	sessions       *Sessions
	metricsEnabled bool
	log            *zap.Logger
}

// NewServer creates a new API server.
func NewServer(d Deps) *Server {
	log := logger.OrDefault(d.Logger).Named("api")
	return &Server{
		auth:     &AuthAPI{Accounts: d.Accounts, Sessions: d.Sessions, log: log},
		credits:  &CreditsAPI{Engine: d.Engine, Leaderboard: d.Leaderboard, Accounts: d.Accounts, log: log},
		reports:  &ReportsAPI{Reports: d.Reports, Photos: d.Photos, log: log},
		sessions: d.Sessions,
		log:      log,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(observability.HTTPMetrics)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Sessions
		r.Post("/signup", s.auth.HandleSignup)
		r.Post("/login", s.auth.HandleLogin)
		r.Post("/logout", s.auth.HandleLogout)
		r.Get("/me", s.auth.HandleMe)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/signup", s.auth.HandleAdminSignup)
			r.Post("/login", s.auth.HandleAdminLogin)
			r.Post("/logout", s.auth.HandleAdminLogout)
			r.Get("/me", s.auth.HandleAdminMe)

			r.With(s.sessions.RequireAdmin).Put("/users/{id}/multiplier", s.credits.HandleSetMultiplier)
		})

		// Public
		r.Get("/leaderboard", s.credits.HandleLeaderboard)
		r.Get("/badges", s.credits.HandleBadgeCatalog)

		// Citizens
		r.Group(func(r chi.Router) {
			r.Use(s.sessions.RequireCitizen)
			r.Post("/report", s.reports.HandleSubmit)
			r.Get("/myreports", s.reports.HandleMyReports)
			r.Get("/credits", s.credits.HandleCredits)
			r.Get("/credits/history", s.credits.HandleHistory)
			r.Post("/credits/redeem", s.credits.HandleRedeem)
		})

		// Administrators
		r.Group(func(r chi.Router) {
			r.Use(s.sessions.RequireAdmin)
			r.Get("/reports", s.reports.HandleListAll)
			r.Post("/report/{id}/status", s.reports.HandleUpdateStatus)
		})
	})

	r.Get("/uploads/{name}", s.reports.HandlePhoto)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// writeDomainError maps a service error to its status code. Unexpected
// errors are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidMultiplier),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidDisposalMethod),
		errors.Is(err, domain.ErrUnknownActionKind),
		errors.Is(err, domain.ErrNotAnImage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInvalidOrgCode):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrReportNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrPhotoNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPhotoTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrMissingFields)
	}
	return nil
}
