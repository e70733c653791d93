package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/credkit"
	"github.com/MrEthical07/credkit/metrics/export/prometheus"
	"github.com/MrEthical07/credkit/middleware"
	"github.com/MrEthical07/credkit/oauth"
	"github.com/hashicorp/go-hclog"
)

const maxBodyBytes = 1 << 20

type api struct {
	engine *credkit.Engine
	logger hclog.Logger
}

// newRouter mounts every route behind the rate limiter.
func newRouter(engine *credkit.Engine, logger hclog.Logger) http.Handler {
	a := &api{engine: engine, logger: logger}
	guard := middleware.Guard(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", a.register)
	mux.HandleFunc("POST /auth/login", a.login)
	mux.Handle("GET /auth/me", guard(http.HandlerFunc(a.me)))
	mux.Handle("POST /auth/change-password", guard(http.HandlerFunc(a.changePassword)))
	mux.HandleFunc("POST /auth/forgot-password", a.forgotPassword)
	mux.HandleFunc("POST /auth/reset-password", a.resetPassword)
	mux.HandleFunc("GET /auth/oauth/start", a.oauthStart)
	mux.HandleFunc("GET /auth/oauth/callback", a.oauthCallback)
	mux.Handle("POST /auth/logout", guard(http.HandlerFunc(a.logout)))
	mux.Handle("GET /metrics", prometheus.Handler(engine))

	return middleware.RateLimit(engine, nil)(mux)
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req credkit.RegisterRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.engine.Register(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req credkit.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.engine.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		a.writeError(w, credkit.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (a *api) changePassword(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		a.writeError(w, credkit.ErrUnauthorized)
		return
	}
	var req credkit.ChangePasswordRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.ChangePassword(r.Context(), subject.ID, req); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req credkit.ForgotPasswordRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.engine.ForgotPassword(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req credkit.ResetPasswordRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.ResetPassword(r.Context(), req); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) oauthStart(w http.ResponseWriter, r *http.Request) {
	redirect, err := a.engine.BeginOAuth(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// oauthCallback validates the state and hands the authorization code back to
// the client, which performs the token exchange.
func (a *api) oauthCallback(w http.ResponseWriter, r *http.Request) {
	code, err := a.engine.CompleteOAuth(r.Context(), oauth.ParseCallback(r.URL.Query()))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := a.engine.RevokeToken(r.Context(), token); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps engine errors to a status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, credkit.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, credkit.ErrInvalidOrExpired):
		return http.StatusBadRequest, credkit.ErrInvalidOrExpired.Error()
	case errors.Is(err, credkit.ErrEmailTaken):
		return http.StatusConflict, credkit.ErrEmailTaken.Error()
	case errors.Is(err, credkit.ErrInvalidCredentials):
		return http.StatusUnauthorized, credkit.ErrInvalidCredentials.Error()
	case errors.Is(err, credkit.ErrUnauthorized):
		return http.StatusUnauthorized, credkit.ErrUnauthorized.Error()
	case errors.Is(err, credkit.ErrOAuthDenied):
		return http.StatusForbidden, credkit.ErrOAuthDenied.Error()
	case errors.Is(err, credkit.ErrRateLimited):
		return http.StatusTooManyRequests, middleware.RateLimitMessage
	case errors.Is(err, credkit.ErrOAuthNotConfigured):
		return http.StatusNotFound, credkit.ErrOAuthNotConfigured.Error()
	case errors.Is(err, credkit.ErrRevocationDisabled):
		return http.StatusNotImplemented, credkit.ErrRevocationDisabled.Error()
	case errors.Is(err, credkit.ErrStoreUnavailable), errors.Is(err, credkit.ErrProviderFailure):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
