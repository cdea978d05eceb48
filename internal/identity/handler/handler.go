// Package handler exposes the email link administration endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"peoplehub/internal/identity/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/httputil"
	"peoplehub/pkg/requestcontext"
)

// Service is the identity resolver surface the admin endpoints drive.
type Service interface {
	Emails(ctx context.Context, profileID id.ProfileID) ([]*models.EmailLink, error)
	LinkEmail(ctx context.Context, profileID id.ProfileID, identityID id.IdentityID, address string, isPrimary bool) (*models.EmailLink, error)
	UnlinkEmail(ctx context.Context, identityID id.IdentityID) error
	SetPrimaryEmail(ctx context.Context, identityID id.IdentityID) (*models.EmailLink, error)
	RepairAll(ctx context.Context) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the endpoints. The caller guards them with the admin
// token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/v1/admin/profiles/{profileID}/emails", h.HandleList)
	r.Post("/v1/admin/profiles/{profileID}/emails", h.HandleLink)
	r.Delete("/v1/admin/emails/{identityID}", h.HandleUnlink)
	r.Put("/v1/admin/emails/{identityID}/primary", h.HandleSetPrimary)
	r.Post("/v1/admin/emails/repair", h.HandleRepair)
}

// HandleList handles GET /v1/admin/profiles/{profileID}/emails.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	links, err := h.service.Emails(ctx, profileID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list email links",
			"request_id", requestcontext.RequestID(ctx),
			"profile_id", profileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := &LinksResponse{ProfileID: string(profileID), Emails: make([]*LinkResponse, 0, len(links))}
	for _, l := range links {
		resp.Emails = append(resp.Emails, FromLink(l))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleLink handles POST /v1/admin/profiles/{profileID}/emails.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[LinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	link, err := h.service.LinkEmail(ctx, profileID, req.ParsedIdentityID(), req.Email, req.IsPrimary)
	if err != nil {
		h.logger.WarnContext(ctx, "link email failed",
			"request_id", requestID,
			"profile_id", profileID,
			"identity_id", req.ParsedIdentityID(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "email linked",
		"request_id", requestID,
		"actor", requestcontext.Actor(ctx),
		"profile_id", profileID,
		"identity_id", link.IdentityID,
		"primary", link.IsPrimary,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromLink(link))
}

// HandleUnlink handles DELETE /v1/admin/emails/{identityID}.
func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.UnlinkEmail(ctx, identityID); err != nil {
		h.logger.WarnContext(ctx, "unlink email failed",
			"request_id", requestcontext.RequestID(ctx),
			"identity_id", identityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetPrimary handles PUT /v1/admin/emails/{identityID}/primary.
func (h *Handler) HandleSetPrimary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	link, err := h.service.SetPrimaryEmail(ctx, identityID)
	if err != nil {
		h.logger.WarnContext(ctx, "set primary email failed",
			"request_id", requestcontext.RequestID(ctx),
			"identity_id", identityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLink(link))
}

// HandleRepair handles POST /v1/admin/emails/repair.
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repaired, err := h.service.RepairAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "email link repair failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &RepairResponse{Repaired: repaired})
}
