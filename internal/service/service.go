package service

import (
	"context"

	"custody-backend/internal/artifact"
	"custody-backend/internal/domain"

	"github.com/google/uuid"
)

// LifecycleService moves assets through the custody state machine. Every
// mutation is a single compare-and-swap; failures come back typed and are
// never retried here.
type LifecycleService interface {
	Submit(ctx context.Context, req domain.TransitionRequest) (*domain.Asset, error)

	Create(ctx context.Context, caller domain.Caller, req domain.CreateRequest) (*domain.Asset, error)
	Approve(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error)
	Deny(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error)
	Assign(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error)
	Free(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error)
	Return(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error)
	UpdateDetails(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error)

	// Get reports domain.ErrNotFound for records the caller may not see.
	Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Asset, error)
	// ListVisible returns the caller's visible records, newest first.
	ListVisible(ctx context.Context, caller domain.Caller) ([]domain.Asset, error)
	ListCustodians(ctx context.Context, caller domain.Caller) ([]domain.CustodianSummary, error)
}

// ArtifactService serves the derived code of an asset. ok is false when the
// asset exists and is visible but is not assigned.
type ArtifactService interface {
	Artifact(ctx context.Context, caller domain.Caller, id uuid.UUID) (code artifact.Code, ok bool, err error)
	ArtifactDocument(ctx context.Context, caller domain.Caller, id uuid.UUID) (doc []byte, ok bool, err error)
}

// NotificationService tells administrators about custody events that need
// their attention.
type NotificationService interface {
	NotifyPendingRequest(ctx context.Context, asset *domain.Asset, requester domain.Caller) error
	NotifyReturn(ctx context.Context, asset *domain.Asset, returnedBy domain.Caller) error
}
