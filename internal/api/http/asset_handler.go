package http

import (
	"context"
	"fmt"
	"net/http"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AssetHandler serves the asset custody routes.
type AssetHandler struct {
	lifecycle service.LifecycleService
	artifacts service.ArtifactService
	notifier  service.NotificationService
	views     *viewBuilder
}

type transitionBody struct {
	RatingBefore *int `json:"rating_before"`
	RatingAfter  *int `json:"rating_after"`
	RecordReturn bool `json:"record_return"`
}

func assetID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed asset id: %w", domain.ErrNotFound)
	}
	return id, nil
}

func (h *AssetHandler) respondAsset(w http.ResponseWriter, r *http.Request, status int, a *domain.Asset) {
	v, err := h.views.build(r.Context(), a)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	setVersionHeader(w, a)
	writeJSON(w, status, v)
}

func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())
	var req domain.CreateRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	asset, err := h.lifecycle.Create(r.Context(), caller, req)
	if err != nil {
		logger.TransitionRejected(r.Context(), "create", "", caller.ID, err, domain.IsRetryable(err))
		writeServiceError(w, r, err)
		return
	}
	logger.TransitionCommitted(r.Context(), "create-"+string(asset.Status), asset.ID.String(), caller.ID, asset.Version)
	if asset.Status == domain.AssetStatusPending {
		h.notify(r.Context(), "NotifyPendingRequest", func(ctx context.Context) error {
			return h.notifier.NotifyPendingRequest(ctx, asset, caller)
		})
	}
	h.respondAsset(w, r, http.StatusCreated, asset)
}

func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.lifecycle.ListVisible(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views, err := h.views.buildAll(r.Context(), assets)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": views})
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	asset, err := h.lifecycle.Get(r.Context(), CallerFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondAsset(w, r, http.StatusOK, asset)
}

func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var details domain.Details
	if err := readJSON(r, &details); err != nil {
		writeServiceError(w, r, err)
		return
	}
	version, err := parseIfMatch(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.submit(w, r, domain.TransitionRequest{
		Transition: domain.TransitionUpdateDetails,
		AssetID:    id,
		Caller:     CallerFromContext(r.Context()),
		Payload:    domain.Payload{ExpectedVersion: version, Details: details},
	})
}

// Transition serves POST /assets/{id}/{action} for the addressable actions.
func (h *AssetHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, err := domain.ParseTransition(mux.Vars(r)["action"])
	if err != nil || t.IsCreation() || t == domain.TransitionUpdateDetails {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown action", nil)
		return
	}
	var body transitionBody
	if err := readJSON(r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	version, err := parseIfMatch(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.submit(w, r, domain.TransitionRequest{
		Transition: t,
		AssetID:    id,
		Caller:     CallerFromContext(r.Context()),
		Payload: domain.Payload{
			ExpectedVersion: version,
			RatingBefore:    body.RatingBefore,
			RatingAfter:     body.RatingAfter,
			RecordReturn:    body.RecordReturn,
		},
	})
}

func (h *AssetHandler) submit(w http.ResponseWriter, r *http.Request, req domain.TransitionRequest) {
	asset, err := h.lifecycle.Submit(r.Context(), req)
	if err != nil {
		logger.TransitionRejected(r.Context(), string(req.Transition), req.AssetID.String(), req.Caller.ID, err, domain.IsRetryable(err))
		writeServiceError(w, r, err)
		return
	}
	logger.TransitionCommitted(r.Context(), string(req.Transition), asset.ID.String(), req.Caller.ID, asset.Version)
	if req.Transition == domain.TransitionReturn {
		h.notify(r.Context(), "NotifyReturn", func(ctx context.Context) error {
			return h.notifier.NotifyReturn(ctx, asset, req.Caller)
		})
	}
	h.respondAsset(w, r, http.StatusOK, asset)
}

func (h *AssetHandler) ListCustodians(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.lifecycle.ListCustodians(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []domain.CustodianSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"custodians": summaries})
}

func (h *AssetHandler) QR(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	code, ok, err := h.artifacts.Artifact(r.Context(), CallerFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "artifact_unavailable", "asset is not assigned", nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code.PNG)
}

func (h *AssetHandler) QRDocument(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	doc, ok, err := h.artifacts.ArtifactDocument(r.Context(), CallerFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "artifact_unavailable", "asset is not assigned", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="asset-%s.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// notify runs a post-commit notification. The transition has already
// committed, so a delivery failure is logged and does not change the response.
func (h *AssetHandler) notify(ctx context.Context, operation string, send func(context.Context) error) {
	if h.notifier == nil {
		return
	}
	logger.ExternalServiceCall("email", operation)
	err := send(ctx)
	logger.ExternalServiceResult("email", operation, err)
}
