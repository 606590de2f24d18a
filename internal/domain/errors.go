package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPolicyDenied: the caller may not perform the transition. Terminal.
	ErrPolicyDenied = errors.New("policy denied")
	// ErrStateMismatch: the transition does not apply to the current status. Terminal.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrVersionConflict: a concurrent transition committed first. Retryable.
	ErrVersionConflict = errors.New("version conflict")
	ErrNotFound        = errors.New("asset not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type PolicyDeniedError struct {
	Transition Transition
	Reason     string
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrPolicyDenied, e.Transition, e.Reason)
}

func (e *PolicyDeniedError) Unwrap() error { return ErrPolicyDenied }

type StateMismatchError struct {
	Transition Transition
	Current    AssetStatus
	Required   []AssetStatus
}

func (e *StateMismatchError) Error() string {
	required := make([]string, len(e.Required))
	for i, s := range e.Required {
		required[i] = string(s)
	}
	return fmt.Sprintf("%s: %s requires status %s, asset is %s",
		ErrStateMismatch, e.Transition, strings.Join(required, " or "), e.Current)
}

func (e *StateMismatchError) Unwrap() error { return ErrStateMismatch }

// IsRetryable reports whether a fresh read may let the same request succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
