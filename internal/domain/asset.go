package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AssetStatus string

const (
	AssetStatusFree     AssetStatus = "free"
	AssetStatusPending  AssetStatus = "pending"
	AssetStatusAssigned AssetStatus = "assigned"
)

// ParseStatus accepts the canonical custody states and the historical
// approved/denied vocabulary, which are renamings of assigned/free.
func ParseStatus(s string) (AssetStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free", "denied":
		return AssetStatusFree, nil
	case "pending":
		return AssetStatusPending, nil
	case "assigned", "approved":
		return AssetStatusAssigned, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

type ActionType string

const (
	ActionTypeNone   ActionType = ""
	ActionTypeTake   ActionType = "take"
	ActionTypeReturn ActionType = "return"
)

const (
	MaxAssetTypeLength = 50
	MaxTitleLength     = 100
	MinRating          = 1
	MaxRating          = 5
)

type Asset struct {
	ID          uuid.UUID   `json:"id"`
	AssetType   string      `json:"asset_type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	PhotoRef    string      `json:"photo_ref,omitempty"`
	Status      AssetStatus `json:"status"`
	Owner       *string     `json:"owner,omitempty"`
	// Requester is the party awaiting approval ("pending user").
	Requester    *string    `json:"pending_user,omitempty"`
	LinkedAsset  *uuid.UUID `json:"linked_asset,omitempty"`
	ActionType   ActionType `json:"action_type,omitempty"`
	RatingBefore *int       `json:"rating_before,omitempty"`
	RatingAfter  *int       `json:"rating_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Version      int64      `json:"version"`
}

// Clone returns a deep copy so callers can mutate pointer fields safely.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.Owner = cloneString(a.Owner)
	c.Requester = cloneString(a.Requester)
	c.RatingBefore = cloneInt(a.RatingBefore)
	c.RatingAfter = cloneInt(a.RatingAfter)
	if a.LinkedAsset != nil {
		id := *a.LinkedAsset
		c.LinkedAsset = &id
	}
	return &c
}

// IsOwnedBy reports whether identity is the current custodian.
func (a *Asset) IsOwnedBy(identity string) bool {
	return a.Status == AssetStatusAssigned && a.Owner != nil && identity != "" && *a.Owner == identity
}

// IsRequestedBy reports whether identity is awaiting approval for the asset.
func (a *Asset) IsRequestedBy(identity string) bool {
	return a.Status == AssetStatusPending && a.Requester != nil && identity != "" && *a.Requester == identity
}

// CheckInvariants returns the first custody invariant the record violates.
func (a *Asset) CheckInvariants() error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("asset has no id")
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("asset %s has no creation time", a.ID)
	}
	switch a.Status {
	case AssetStatusAssigned:
		if a.Owner == nil || a.Requester != nil {
			return fmt.Errorf("asset %s: assigned requires owner and no requester", a.ID)
		}
	case AssetStatusPending:
		if a.Requester == nil || a.Owner != nil {
			return fmt.Errorf("asset %s: pending requires requester and no owner", a.ID)
		}
	case AssetStatusFree:
		if a.Owner != nil || a.Requester != nil {
			return fmt.Errorf("asset %s: free requires neither owner nor requester", a.ID)
		}
	default:
		return fmt.Errorf("asset %s: unknown status %q", a.ID, a.Status)
	}
	return nil
}

// CustodianSummary counts the assets currently assigned to one owner.
type CustodianSummary struct {
	Owner         string `json:"owner"`
	AssignedCount int    `json:"assigned_count"`
}

func StringPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
