package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/policy"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type lifecycleService struct {
	assets repository.AssetRepository
	now    func() time.Time
	newID  func() uuid.UUID
	tracer trace.Tracer
}

type LifecycleOption func(*lifecycleService)

// WithClock replaces the creation-time source.
func WithClock(now func() time.Time) LifecycleOption {
	return func(s *lifecycleService) { s.now = now }
}

// WithIDGenerator replaces the asset id source.
func WithIDGenerator(newID func() uuid.UUID) LifecycleOption {
	return func(s *lifecycleService) { s.newID = newID }
}

func NewLifecycleService(assets repository.AssetRepository, opts ...LifecycleOption) LifecycleService {
	s := &lifecycleService{
		assets: assets,
		now:    time.Now,
		newID:  uuid.New,
		tracer: otel.Tracer("custody-backend/service/lifecycle"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *lifecycleService) Submit(ctx context.Context, req domain.TransitionRequest) (*domain.Asset, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.submit",
		trace.WithAttributes(
			attribute.String("transition", string(req.Transition)),
			attribute.String("asset.id", req.AssetID.String()),
			attribute.Bool("caller.admin", req.Caller.IsAdmin),
		),
	)
	defer span.End()

	var (
		asset *domain.Asset
		err   error
	)
	if req.Transition.IsCreation() {
		asset, err = s.create(ctx, req)
	} else {
		asset, err = s.transition(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("asset.id", asset.ID.String()),
		attribute.Int64("asset.version", asset.Version),
		attribute.String("asset.status", string(asset.Status)),
	)
	return asset, nil
}

func (s *lifecycleService) create(ctx context.Context, req domain.TransitionRequest) (*domain.Asset, error) {
	if err := policy.Decide(req.Transition, req.Caller, nil).Err(req.Transition); err != nil {
		return nil, err
	}
	if err := req.Create.Validate(); err != nil {
		return nil, err
	}

	asset := &domain.Asset{
		ID:          s.newID(),
		AssetType:   strings.TrimSpace(req.Create.AssetType),
		Title:       strings.TrimSpace(req.Create.Title),
		Description: req.Create.Description,
		PhotoRef:    req.Create.PhotoRef,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
		Version:     1,
	}
	switch req.Transition {
	case domain.TransitionCreatePending:
		asset.Status = domain.AssetStatusPending
		asset.Requester = domain.StringPtr(req.Caller.ID)
		asset.ActionType = domain.ActionTypeTake
	case domain.TransitionCreateAssigned:
		asset.Status = domain.AssetStatusAssigned
		asset.Owner = domain.StringPtr(req.Caller.ID)
		asset.ActionType = domain.ActionTypeTake
	case domain.TransitionCreateFree:
		asset.Status = domain.AssetStatusFree
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *lifecycleService) transition(ctx context.Context, req domain.TransitionRequest) (*domain.Asset, error) {
	current, err := s.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	if err := policy.Decide(req.Transition, req.Caller, current).Err(req.Transition); err != nil {
		return nil, err
	}
	if err := checkSourceState(req.Transition, current); err != nil {
		return nil, err
	}
	if err := validatePayload(req.Transition, req.Payload); err != nil {
		return nil, err
	}
	if v := req.Payload.ExpectedVersion; v != 0 && v != current.Version {
		return nil, fmt.Errorf("asset %s at version %d, caller expected %d: %w",
			current.ID, current.Version, v, domain.ErrVersionConflict)
	}

	next := current.Clone()
	var companions []*domain.Asset
	switch req.Transition {
	case domain.TransitionApprove, domain.TransitionAssign:
		next.Status = domain.AssetStatusAssigned
		next.Owner = current.Requester
		next.Requester = nil
		next.ActionType = domain.ActionTypeTake
	case domain.TransitionDeny, domain.TransitionFree:
		next.Status = domain.AssetStatusFree
		next.Owner = nil
		next.Requester = nil
	case domain.TransitionReturn:
		next.Status = domain.AssetStatusFree
		next.Owner = nil
		next.Requester = nil
		if req.Payload.RatingBefore != nil {
			next.RatingBefore = domain.IntPtr(*req.Payload.RatingBefore)
		}
		if req.Payload.RatingAfter != nil {
			next.RatingAfter = domain.IntPtr(*req.Payload.RatingAfter)
		}
		if req.Payload.RecordReturn {
			companions = append(companions, s.returnRecord(next))
		}
	case domain.TransitionUpdateDetails:
		applyDetails(next, req.Payload.Details)
	default:
		return nil, fmt.Errorf("%w: unknown transition %q", domain.ErrInvalidArgument, req.Transition)
	}
	next.Version = current.Version + 1

	if err := s.assets.CompareAndSwap(ctx, next, current.Version, companions...); err != nil {
		return nil, err
	}
	return next, nil
}

// returnRecord is the historical entry created alongside a return. It is a
// free record pointing back at the returned asset.
func (s *lifecycleService) returnRecord(returned *domain.Asset) *domain.Asset {
	linked := returned.ID
	return &domain.Asset{
		ID:           s.newID(),
		AssetType:    returned.AssetType,
		Title:        returned.Title,
		Description:  returned.Description,
		PhotoRef:     returned.PhotoRef,
		Status:       domain.AssetStatusFree,
		LinkedAsset:  &linked,
		ActionType:   domain.ActionTypeReturn,
		RatingBefore: returned.RatingBefore,
		RatingAfter:  returned.RatingAfter,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
		Version:      1,
	}
}

func checkSourceState(t domain.Transition, asset *domain.Asset) error {
	allowed := t.SourceStates()
	if allowed == nil {
		return nil
	}
	for _, st := range allowed {
		if asset.Status == st {
			return nil
		}
	}
	return &domain.StateMismatchError{Transition: t, Current: asset.Status, Required: allowed}
}

func validatePayload(t domain.Transition, p domain.Payload) error {
	switch t {
	case domain.TransitionReturn:
		if err := domain.ValidateRating("rating_before", p.RatingBefore); err != nil {
			return err
		}
		return domain.ValidateRating("rating_after", p.RatingAfter)
	case domain.TransitionUpdateDetails:
		if p.Details.Empty() {
			return fmt.Errorf("%w: no fields to update", domain.ErrInvalidArgument)
		}
		return p.Details.Validate()
	}
	return nil
}

func applyDetails(a *domain.Asset, d domain.Details) {
	if d.AssetType != nil {
		a.AssetType = strings.TrimSpace(*d.AssetType)
	}
	if d.Title != nil {
		a.Title = strings.TrimSpace(*d.Title)
	}
	if d.Description != nil {
		a.Description = *d.Description
	}
	if d.PhotoRef != nil {
		a.PhotoRef = *d.PhotoRef
	}
}

func (s *lifecycleService) Create(ctx context.Context, caller domain.Caller, req domain.CreateRequest) (*domain.Asset, error) {
	t, err := req.CreationTransition(caller)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, domain.TransitionRequest{Transition: t, Caller: caller, Create: req})
}

func (s *lifecycleService) Approve(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.submit(ctx, domain.TransitionApprove, caller, id, payload)
}

func (s *lifecycleService) Deny(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.submit(ctx, domain.TransitionDeny, caller, id, payload)
}

func (s *lifecycleService) Assign(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.submit(ctx, domain.TransitionAssign, caller, id, payload)
}

func (s *lifecycleService) Free(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.submit(ctx, domain.TransitionFree, caller, id, payload)
}

func (s *lifecycleService) Return(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.submit(ctx, domain.TransitionReturn, caller, id, payload)
}

func (s *lifecycleService) UpdateDetails(ctx context.Context, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.submit(ctx, domain.TransitionUpdateDetails, caller, id, payload)
}

func (s *lifecycleService) submit(ctx context.Context, t domain.Transition, caller domain.Caller, id uuid.UUID, payload domain.Payload) (*domain.Asset, error) {
	return s.Submit(ctx, domain.TransitionRequest{Transition: t, AssetID: id, Caller: caller, Payload: payload})
}

func (s *lifecycleService) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, asset) {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return asset, nil
}

func (s *lifecycleService) ListVisible(ctx context.Context, caller domain.Caller) ([]domain.Asset, error) {
	filter, ok := policy.VisibilityFilter(caller)
	if !ok {
		return nil, policy.Decide(domain.TransitionRead, caller, nil).Err(domain.TransitionRead)
	}
	return s.assets.List(ctx, filter)
}

func (s *lifecycleService) ListCustodians(ctx context.Context, caller domain.Caller) ([]domain.CustodianSummary, error) {
	if !policy.CanListCustodians(caller) {
		return nil, &domain.PolicyDeniedError{Transition: domain.TransitionRead, Reason: "administrator privilege required"}
	}
	return s.assets.CountAssignedByOwner(ctx)
}
