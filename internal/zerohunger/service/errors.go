package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrWrongRole          = errors.New("not permitted for this role")
	ErrInvalidTransition  = errors.New("action not allowed in the current state")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrNotFound           = errors.New("not found")
	ErrStoreUnavailable   = errors.New("store unavailable")

	ErrValidation        = errors.New("validation failed")
	ErrEmailTaken        = errors.New("email already registered")
	ErrSecondFactorState = errors.New("second factor step not allowed now")
	ErrConflict          = errors.New("concurrent update, try again")
	ErrTooManyAttempts   = errors.New("too many failed verification attempts")
)

// ValidationError carries per-field messages keyed by the json field name.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// mapStoreErr turns driver errors into the service taxonomy. Anything the
// store does not classify is reported as the store being unavailable.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case isServiceErr(err):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

// mapDomainErr folds lifecycle rule violations onto the service taxonomy.
func mapDomainErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrIllegalActor):
		return fmt.Errorf("%w: %w", ErrWrongRole, err)
	case errors.Is(err, domain.ErrIllegalTransition):
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	default:
		return err
	}
}

var serviceErrs = []error{
	ErrInvalidCredentials, ErrInvalidCode, ErrNotAuthenticated, ErrWrongRole,
	ErrInvalidTransition, ErrInvalidQuantity, ErrNotFound, ErrStoreUnavailable,
	ErrValidation, ErrEmailTaken, ErrSecondFactorState, ErrConflict,
	ErrTooManyAttempts,
}

func isServiceErr(err error) bool {
	for _, target := range serviceErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
