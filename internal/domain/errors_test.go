package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy_Messages(t *testing.T) {
	assert.Equal(t, "validation failed for items: too many", NewValidationError("items", "too many").Error())
	assert.Equal(t, "validation failed: bad shape", NewValidationError("", "bad shape").Error())
	assert.Equal(t, "transaction not found: offer-1", NewNotFoundError("transaction", "offer-1").Error())
	assert.Equal(t, "conflict on transaction: offer-1", NewConflictError("transaction", "offer-1").Error())

	dep := NewDependencyUnavailable("price oracle", errors.New("timeout"))
	assert.Contains(t, dep.Error(), "price oracle")
	assert.Contains(t, dep.Error(), "timeout")
}

func TestErrorTaxonomy_As(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("items", "too many"), IsValidation},
		{"not found", NewNotFoundError("user", "42"), IsNotFound},
		{"conflict", NewConflictError("transaction", "offer-9"), IsConflict},
		{"dependency", NewDependencyUnavailable("store", errors.New("down")), IsDependencyUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			// Wrapping must not hide the type.
			wrapped := fmt.Errorf("failed to decide: %w", tc.err)
			assert.True(t, tc.check(wrapped))
		})
	}
}

func TestErrorTaxonomy_Disjoint(t *testing.T) {
	err := NewConflictError("transaction", "offer-9")
	assert.False(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsDependencyUnavailable(err))
}

func TestDependencyUnavailable_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewDependencyUnavailable("price oracle", inner)
	assert.True(t, errors.Is(err, inner))
}
