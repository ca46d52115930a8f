// Package services defines the business logic for recipes, profiles, and AI
// adaptations. This file centralizes the closed set of error kinds that
// service methods return so handlers can map them to HTTP results
// exhaustively.
//
// Every expected failure is an *Error carrying a Kind. Callers compare with
// errors.Is against the exported sentinels (which match by kind) or switch
// on KindOf(err). Anything that is not an *Error is an unexpected failure and
// is reported as KindInternal at the boundary.
package services

import (
	"errors"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Kind identifies one member of the service error taxonomy.
type Kind string

// Propose kinds.
const (
	KindRecipeNotFound         Kind = "recipe_not_found"
	KindQuotaExceeded          Kind = "quota_exceeded"
	KindAdaptationInProgress   Kind = "adaptation_in_progress"
	KindInvalidIdempotencyKey  Kind = "invalid_idempotency_key"
	KindInvalidGoal            Kind = "invalid_goal"
	KindGenerationFailed       Kind = "generation_failed"
	KindQuotaComputationFailed Kind = "quota_computation_failed"
)

// Accept kinds. KindRecipeNotFound is shared with propose.
const (
	KindProposalNotFound Kind = "proposal_not_found"
	KindInvalidMacros    Kind = "invalid_macros"
	KindCommitFailed     Kind = "commit_failed"
)

// KindInternal is the boundary kind for anything unexpected.
const KindInternal Kind = "internal_error"

// Error is a typed service failure.
type Error struct {
	Kind Kind
	Err  error
	// Window is set on quota_exceeded so callers can tell the user when the
	// quota resets.
	Window *domain.QuotaWindow
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrRecipeNotFound         = &Error{Kind: KindRecipeNotFound}
	ErrQuotaExceeded          = &Error{Kind: KindQuotaExceeded}
	ErrAdaptationInProgress   = &Error{Kind: KindAdaptationInProgress}
	ErrInvalidIdempotencyKey  = &Error{Kind: KindInvalidIdempotencyKey}
	ErrInvalidGoal            = &Error{Kind: KindInvalidGoal}
	ErrGenerationFailed       = &Error{Kind: KindGenerationFailed}
	ErrQuotaComputationFailed = &Error{Kind: KindQuotaComputationFailed}
	ErrProposalNotFound       = &Error{Kind: KindProposalNotFound}
	ErrInvalidMacros          = &Error{Kind: KindInvalidMacros}
	ErrCommitFailed           = &Error{Kind: KindCommitFailed}
	ErrInternal               = &Error{Kind: KindInternal}
)

// CRUD-level validation errors (outside the adaptation taxonomy).
var (
	// ErrInvalidTimezone is returned for identifiers the tz database does not know.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrInvalidRecipe is returned when a recipe has no title or text.
	ErrInvalidRecipe = errors.New("recipe title and text are required")
)

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
