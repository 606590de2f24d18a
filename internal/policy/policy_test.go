package policy_test

import (
	"testing"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/policy"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	admin := domain.Caller{ID: "admin", IsAdmin: true}
	owner := domain.Caller{ID: "u1"}
	other := domain.Caller{ID: "u2"}
	anonymous := domain.Caller{}

	assigned := &domain.Asset{ID: uuid.New(), Status: domain.AssetStatusAssigned, Owner: domain.StringPtr("u1"), CreatedAt: time.Now()}
	pending := &domain.Asset{ID: uuid.New(), Status: domain.AssetStatusPending, Requester: domain.StringPtr("u1"), CreatedAt: time.Now()}

	tests := []struct {
		name       string
		transition domain.Transition
		caller     domain.Caller
		asset      *domain.Asset
		allowed    bool
	}{
		{"Anyone may request", domain.TransitionCreatePending, other, nil, true},
		{"Anonymous may not request", domain.TransitionCreatePending, anonymous, nil, false},
		{"Admin creates free", domain.TransitionCreateFree, admin, nil, true},
		{"User cannot create free", domain.TransitionCreateFree, other, nil, false},
		{"User cannot create assigned", domain.TransitionCreateAssigned, owner, nil, false},
		{"Admin approves", domain.TransitionApprove, admin, pending, true},
		{"Requester cannot self-approve", domain.TransitionApprove, owner, pending, false},
		{"User cannot deny", domain.TransitionDeny, owner, pending, false},
		{"User cannot assign", domain.TransitionAssign, owner, pending, false},
		{"Owner cannot free", domain.TransitionFree, owner, assigned, false},
		{"Admin frees", domain.TransitionFree, admin, assigned, true},
		{"Owner returns", domain.TransitionReturn, owner, assigned, true},
		{"Other cannot return", domain.TransitionReturn, other, assigned, false},
		{"Admin is not owner for return", domain.TransitionReturn, admin, assigned, false},
		{"Requester cannot return pending", domain.TransitionReturn, owner, pending, false},
		{"Admin edits details", domain.TransitionUpdateDetails, admin, assigned, true},
		{"Owner cannot edit details", domain.TransitionUpdateDetails, owner, assigned, false},
		{"Unknown transition", domain.Transition("steal"), admin, assigned, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Decide(tt.transition, tt.caller, tt.asset)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.NoError(t, d.Err(tt.transition))
			} else {
				assert.NotEmpty(t, d.Reason)
				assert.ErrorIs(t, d.Err(tt.transition), domain.ErrPolicyDenied)
				assert.False(t, domain.IsRetryable(d.Err(tt.transition)))
			}
		})
	}
}

func TestCanView(t *testing.T) {
	assigned := &domain.Asset{Status: domain.AssetStatusAssigned, Owner: domain.StringPtr("u1")}
	pending := &domain.Asset{Status: domain.AssetStatusPending, Requester: domain.StringPtr("u2")}
	free := &domain.Asset{Status: domain.AssetStatusFree}

	admin := domain.Caller{ID: "admin", IsAdmin: true}
	assert.True(t, policy.CanView(admin, assigned))
	assert.True(t, policy.CanView(admin, free))

	assert.True(t, policy.CanView(domain.Caller{ID: "u1"}, assigned))
	assert.False(t, policy.CanView(domain.Caller{ID: "u1"}, pending))
	assert.True(t, policy.CanView(domain.Caller{ID: "u2"}, pending))
	assert.False(t, policy.CanView(domain.Caller{ID: "u2"}, free))
	assert.False(t, policy.CanView(domain.Caller{}, assigned))
	assert.False(t, policy.CanView(admin, nil))
}

func TestVisibilityFilter(t *testing.T) {
	f, ok := policy.VisibilityFilter(domain.Caller{ID: "admin", IsAdmin: true})
	assert.True(t, ok)
	assert.Empty(t, f.Party)

	f, ok = policy.VisibilityFilter(domain.Caller{ID: "u1"})
	assert.True(t, ok)
	assert.Equal(t, "u1", f.Party)

	_, ok = policy.VisibilityFilter(domain.Caller{})
	assert.False(t, ok)

	assert.True(t, policy.CanListCustodians(domain.Caller{ID: "admin", IsAdmin: true}))
	assert.False(t, policy.CanListCustodians(domain.Caller{ID: "u1"}))
}
