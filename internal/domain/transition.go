package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Transition string

const (
	TransitionCreatePending  Transition = "create-pending"
	TransitionCreateFree     Transition = "create-free"
	TransitionCreateAssigned Transition = "create-assigned"
	TransitionApprove        Transition = "approve"
	TransitionDeny           Transition = "deny"
	TransitionAssign         Transition = "assign"
	TransitionFree           Transition = "free"
	TransitionReturn         Transition = "return"
	TransitionUpdateDetails  Transition = "update-details"

	// TransitionRead names reads in policy decisions. It never mutates and
	// is not accepted by ParseTransition.
	TransitionRead Transition = "read"
)

// ParseTransition maps an externally addressed action to a transition.
// "release" is the historical name of free.
func ParseTransition(s string) (Transition, error) {
	switch t := Transition(strings.ToLower(strings.TrimSpace(s))); t {
	case TransitionCreatePending, TransitionCreateFree, TransitionCreateAssigned,
		TransitionApprove, TransitionDeny, TransitionAssign, TransitionFree,
		TransitionReturn, TransitionUpdateDetails:
		return t, nil
	case "release":
		return TransitionFree, nil
	}
	return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidArgument, s)
}

// IsCreation reports whether the transition produces a new record.
func (t Transition) IsCreation() bool {
	switch t {
	case TransitionCreatePending, TransitionCreateFree, TransitionCreateAssigned:
		return true
	}
	return false
}

// SourceStates lists the statuses a transition may start from. Creations and
// update-details return nil: they carry no status precondition.
func (t Transition) SourceStates() []AssetStatus {
	switch t {
	case TransitionApprove, TransitionDeny, TransitionAssign:
		return []AssetStatus{AssetStatusPending}
	case TransitionFree:
		return []AssetStatus{AssetStatusAssigned, AssetStatusPending}
	case TransitionReturn:
		return []AssetStatus{AssetStatusAssigned}
	}
	return nil
}

// Caller is the identity a request is made on behalf of.
type Caller struct {
	ID      string
	Email   string
	IsAdmin bool
}

func (c Caller) Authenticated() bool { return c.ID != "" }

// Details are the descriptive fields an administrator may edit.
type Details struct {
	AssetType   *string `json:"asset_type,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	PhotoRef    *string `json:"photo_ref,omitempty"`
}

// Payload carries the optional per-transition inputs.
type Payload struct {
	// ExpectedVersion pins the version the caller last observed; zero means
	// the version loaded by the engine is used.
	ExpectedVersion int64
	RatingBefore    *int
	RatingAfter     *int
	// RecordReturn creates a historical return record linked to the asset.
	RecordReturn bool
	Details      Details
}

type TransitionRequest struct {
	Transition Transition
	AssetID    uuid.UUID
	Caller     Caller
	Payload    Payload
	// Create is only read for creation transitions.
	Create CreateRequest
}

type CreateRequest struct {
	AssetType   string `json:"asset_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PhotoRef    string `json:"photo_ref"`
	// Status is honoured only for administrators; empty defaults to assigned.
	Status string `json:"status"`
}

// CreationTransition resolves which create transition a request maps to.
func (r CreateRequest) CreationTransition(caller Caller) (Transition, error) {
	if !caller.IsAdmin {
		return TransitionCreatePending, nil
	}
	if strings.TrimSpace(r.Status) == "" {
		return TransitionCreateAssigned, nil
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		return "", err
	}
	switch status {
	case AssetStatusFree:
		return TransitionCreateFree, nil
	case AssetStatusAssigned:
		return TransitionCreateAssigned, nil
	default:
		return TransitionCreatePending, nil
	}
}

// Validate checks the descriptive fields of a new record.
func (r CreateRequest) Validate() error {
	if err := validateAssetType(r.AssetType); err != nil {
		return err
	}
	return validateTitle(r.Title)
}

// Validate checks the fields an edit would set.
func (d Details) Validate() error {
	if d.AssetType != nil {
		if err := validateAssetType(*d.AssetType); err != nil {
			return err
		}
	}
	if d.Title != nil {
		if err := validateTitle(*d.Title); err != nil {
			return err
		}
	}
	return nil
}

func (d Details) Empty() bool {
	return d.AssetType == nil && d.Title == nil && d.Description == nil && d.PhotoRef == nil
}

// ValidateRating accepts nil or a value on the 1..5 condition scale.
func ValidateRating(name string, r *int) error {
	if r == nil {
		return nil
	}
	if *r < MinRating || *r > MaxRating {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidArgument, name, MinRating, MaxRating)
	}
	return nil
}

func validateAssetType(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%w: asset_type is required", ErrInvalidArgument)
	}
	if len([]rune(s)) > MaxAssetTypeLength {
		return fmt.Errorf("%w: asset_type exceeds %d characters", ErrInvalidArgument, MaxAssetTypeLength)
	}
	return nil
}

func validateTitle(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if len([]rune(s)) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidArgument, MaxTitleLength)
	}
	return nil
}
