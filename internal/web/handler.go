// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package web serves the gatehouse authentication API over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/observability"
)

// AuthService is the subset of auth.Service the HTTP layer depends on.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Register(ctx context.Context, username, password string) (*auth.Session, error)
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	Status(ctx context.Context, token string) bool
	Logout(ctx context.Context, claims *auth.Claims) error
	CurrentUser(ctx context.Context, claims *auth.Claims) (*auth.PublicUser, error)
}

var _ AuthService = (*auth.Service)(nil)

// Credentials is the body of login and register requests.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned by login and register.
type SessionResponse struct {
	Token string          `json:"token"`
	User  auth.PublicUser `json:"user"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Authenticated bool `json:"authenticated"`
}

// LogoutResponse is returned by the logout endpoint.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// UserResponse is returned by the me endpoint.
type UserResponse struct {
	User auth.PublicUser `json:"user"`
}

// Operation names used for the auth attempts metric.
const (
	opLogin    = "login"
	opRegister = "register"
	opStatus   = "status"
	opLogout   = "logout"
	opMe       = "me"
)

// Handler routes the auth endpoints.
type Handler struct {
	auth    AuthService
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for access logs and internal errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics enables request and auth outcome metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc AuthService, opts ...Option) *Handler {
	h := &Handler{
		auth:   svc,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API wrapped in the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("GET /api/auth/status", h.handleStatus)
	mux.HandleFunc("POST /api/auth/logout", h.requireAuth(h.handleLogout))
	mux.HandleFunc("GET /api/auth/me", h.requireAuth(h.handleMe))

	var next http.Handler = bodyLimitMiddleware(MaxBodyBytes, mux)
	next = tracingMiddleware(next)
	if h.metrics != nil {
		next = metricsMiddleware(h.metrics, mux, next)
	}
	next = accessLogMiddleware(h.logger, next)
	next = requestIDMiddleware(next)
	return recoverMiddleware(h.logger, next)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, opLogin, h.auth.Login)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, opRegister, h.auth.Register)
}

func (h *Handler) handleCredentials(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, username, password string) (*auth.Session, error),
) {
	var req Credentials
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	session, err := fn(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.record(op, observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, SessionResponse{Token: session.Token, User: session.User})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ok := h.auth.Status(r.Context(), bearerToken(r.Header.Get("Authorization")))
	if ok {
		h.record(opStatus, observability.OutcomeSuccess)
	} else {
		h.record(opStatus, observability.OutcomeRejected)
	}
	writeJSON(w, http.StatusOK, StatusResponse{Authenticated: ok})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		h.fail(w, r, opLogout, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user logged out", "user_id", claims.UserID.String())
	h.record(opLogout, observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	user, err := h.auth.CurrentUser(r.Context(), claims)
	if err != nil {
		h.fail(w, r, opMe, err)
		return
	}
	h.record(opMe, observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, UserResponse{User: *user})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := h.respondError(w, r, err)
	if status >= http.StatusInternalServerError {
		h.record(op, observability.OutcomeError)
		return
	}
	h.record(op, observability.OutcomeRejected)
}

func (h *Handler) record(op, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordAuth(op, outcome)
	}
}
