package domain

import (
	"errors"
	"fmt"
)

// ValidationError marks an offer or request that is permanently unsuitable
// (malformed or unsupported shape). Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError marks a missing user, transaction or catalog item.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// NewNotFoundError creates a NotFoundError for the given entity and key.
func NewNotFoundError(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// DependencyUnavailable marks a price-oracle or store timeout/error.
// During policy evaluation this resolves to a decline (fail-closed) but is
// logged for alerting since it may indicate a systemic outage.
type DependencyUnavailable struct {
	Dependency string
	Err        error
}

func (e *DependencyUnavailable) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyUnavailable) Unwrap() error {
	return e.Err
}

// NewDependencyUnavailable wraps err as a DependencyUnavailable.
func NewDependencyUnavailable(dependency string, err error) *DependencyUnavailable {
	return &DependencyUnavailable{Dependency: dependency, Err: err}
}

// ConflictError marks a duplicate trade-offer insert or a guard-condition
// mismatch on completion. Expected under duplicate delivery and treated as
// an idempotent no-op during reconciliation.
type ConflictError struct {
	Entity string
	Key    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Entity, e.Key)
}

// NewConflictError creates a ConflictError for the given entity and key.
func NewConflictError(entity, key string) *ConflictError {
	return &ConflictError{Entity: entity, Key: key}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsDependencyUnavailable reports whether err is (or wraps) a
// DependencyUnavailable.
func IsDependencyUnavailable(err error) bool {
	var target *DependencyUnavailable
	return errors.As(err, &target)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
