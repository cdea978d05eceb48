// Package handler exposes the session manager to the UI shell over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"peoplehub/internal/auth"
	"peoplehub/internal/session"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/platform/httputil"
	"peoplehub/pkg/requestcontext"
)

const streamKeepAlive = 30 * time.Second

// Service is the session surface the handler drives. *session.Manager
// satisfies it.
type Service interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	Login(ctx context.Context, address, password string, remember bool) (session.Snapshot, error)
	LoginWithOAuth(ctx context.Context, provider string) (string, error)
	Logout(ctx context.Context)
	RequestPasswordReset(ctx context.Context, address string) (string, error)
	CompletePasswordReset(ctx context.Context, password string) (string, error)
	CheckPermission(permission string) bool
	Refresh(ctx context.Context, trigger string) (*auth.Session, error)
	Retry(ctx context.Context) (session.Snapshot, error)
}

// Signals receives UI presence hints. *session.Keeper satisfies it.
type Signals interface {
	Notify(sig session.Signal)
}

type Handler struct {
	service Service
	signals Signals
	logger  *slog.Logger
}

// New builds the handler. signals may be nil when no keeper runs, in which
// case hints are accepted and dropped.
func New(service Service, signals Signals, logger *slog.Logger) *Handler {
	return &Handler{service: service, signals: signals, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Get("/stream", h.HandleStream)
		r.Post("/login", h.HandleLogin)
		r.Post("/oauth", h.HandleOAuth)
		r.Post("/logout", h.HandleLogout)
		r.Post("/refresh", h.HandleRefresh)
		r.Post("/retry", h.HandleRetry)
		r.Post("/password/reset", h.HandleRequestReset)
		r.Post("/password/complete", h.HandleCompleteReset)
		r.Get("/permissions/{permission}", h.HandlePermission)
		r.Post("/signals", h.HandleSignal)
	})
}

// HandleGet handles GET /v1/session.
func (h *Handler) HandleGet(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromSnapshot(h.service.Snapshot()))
}

// HandleStream handles GET /v1/session/stream as server-sent events, one
// event per session change, starting with the current state.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	updates, cancel := h.service.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, open := <-updates:
			if !open {
				return
			}
			body, err := json.Marshal(FromSnapshot(snap))
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode session event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: session\nid: %d\ndata: %s\n\n", snap.Version, body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleLogin handles POST /v1/session/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snap, err := h.service.Login(ctx, req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.logger.InfoContext(ctx, "login rejected",
			"request_id", requestID,
			"error_code", string(dErrors.CodeOf(err)),
		)
		writeFailure(w, err, FromSnapshot(h.service.Snapshot()))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ActionResponse{Success: true, Session: FromSnapshot(snap)})
}

// HandleOAuth handles POST /v1/session/oauth. The UI opens redirect_url.
func (h *Handler) HandleOAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OAuthRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	redirect, err := h.service.LoginWithOAuth(ctx, req.Provider)
	if err != nil {
		h.logger.InfoContext(ctx, "oauth sign-in rejected",
			"request_id", requestID,
			"provider", req.Provider,
			"error", err,
		)
		writeFailure(w, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ActionResponse{Success: true, RedirectURL: redirect})
}

// HandleLogout handles POST /v1/session/logout. It always succeeds locally.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh handles POST /v1/session/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.service.Refresh(ctx, session.TriggerManual); err != nil {
		writeFailure(w, err, FromSnapshot(h.service.Snapshot()))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ActionResponse{Success: true, Session: FromSnapshot(h.service.Snapshot())})
}

// HandleRetry handles POST /v1/session/retry after a transient load failure.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Retry(r.Context())
	if err != nil {
		writeFailure(w, err, FromSnapshot(snap))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ActionResponse{Success: true, Session: FromSnapshot(snap)})
}

// HandleRequestReset handles POST /v1/session/password/reset.
func (h *Handler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ResetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	msg, err := h.service.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		h.logger.WarnContext(ctx, "password reset request failed", "request_id", requestID, "error", err)
		writeFailure(w, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ActionResponse{Success: true, Message: msg})
}

// HandleCompleteReset handles POST /v1/session/password/complete.
func (h *Handler) HandleCompleteReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CompleteResetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	msg, err := h.service.CompletePasswordReset(ctx, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "password change failed", "request_id", requestID, "error", err)
		writeFailure(w, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ActionResponse{Success: true, Message: msg})
}

// HandlePermission handles GET /v1/session/permissions/{permission}.
func (h *Handler) HandlePermission(w http.ResponseWriter, r *http.Request) {
	permission := chi.URLParam(r, "permission")
	httputil.WriteJSON(w, http.StatusOK, &PermissionResponse{
		Permission: permission,
		Allowed:    h.service.CheckPermission(permission),
	})
}

// HandleSignal handles POST /v1/session/signals.
func (h *Handler) HandleSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SignalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if h.signals != nil {
		h.signals.Notify(req.Signal())
	}
	w.WriteHeader(http.StatusAccepted)
}
