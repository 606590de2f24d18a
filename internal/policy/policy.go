// Package policy decides which callers may perform which custody transitions.
// Every function here is pure: no I/O, no clock, no store access.
package policy

import (
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into a typed error; it returns nil when allowed.
func (d Decision) Err(t domain.Transition) error {
	if d.Allowed {
		return nil
	}
	return &domain.PolicyDeniedError{Transition: t, Reason: d.Reason}
}

// Decide applies the role table to one transition. asset is nil for
// creations. Source-state preconditions are the engine's concern, not ours.
func Decide(t domain.Transition, caller domain.Caller, asset *domain.Asset) Decision {
	if !caller.Authenticated() {
		return deny("caller is not authenticated")
	}

	switch t {
	case domain.TransitionCreatePending:
		return allow()
	case domain.TransitionCreateFree, domain.TransitionCreateAssigned,
		domain.TransitionApprove, domain.TransitionDeny, domain.TransitionAssign,
		domain.TransitionFree, domain.TransitionUpdateDetails:
		if !caller.IsAdmin {
			return deny("administrator privilege required")
		}
		return allow()
	case domain.TransitionReturn:
		if asset == nil || asset.Owner == nil || *asset.Owner != caller.ID {
			return deny("only the current owner may return the asset")
		}
		return allow()
	}
	return deny("unknown transition")
}

// CanView reports whether caller may read asset.
func CanView(caller domain.Caller, asset *domain.Asset) bool {
	if !caller.Authenticated() || asset == nil {
		return false
	}
	if caller.IsAdmin {
		return true
	}
	return (asset.Owner != nil && *asset.Owner == caller.ID) ||
		(asset.Requester != nil && *asset.Requester == caller.ID)
}

// VisibilityFilter expresses CanView as a listing filter. ok is false when the
// caller can see nothing at all.
func VisibilityFilter(caller domain.Caller) (filter repository.AssetFilter, ok bool) {
	if !caller.Authenticated() {
		return repository.AssetFilter{}, false
	}
	if caller.IsAdmin {
		return repository.AssetFilter{}, true
	}
	return repository.AssetFilter{Party: caller.ID}, true
}

// CanListCustodians gates the custodian summary.
func CanListCustodians(caller domain.Caller) bool {
	return caller.Authenticated() && caller.IsAdmin
}
