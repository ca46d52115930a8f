// Package generator is the narrow boundary to whatever produces adaptation
// content. The service calls Generate once per attempt and never retries;
// implementations own their timeout and retry policy and surface a single
// terminal *Error.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Status distinguishes a finished rewrite from an asynchronous acceptance.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// Request is everything a generator sees about one attempt.
type Request struct {
	SystemContext string
	Recipe        domain.Recipe
	Preferences   string
	Goal          domain.Goal
	Notes         string
}

// Result is a generator response. Text, Macros, and Explanation are only
// meaningful when Status is StatusCompleted.
type Result struct {
	Status      Status
	Text        string
	Macros      domain.Macros
	Explanation string
}

// Generator produces one adaptation for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Kind classifies generator failures.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindNetwork           Kind = "network"
	KindRateLimit         Kind = "rate_limit"
	KindMalformedResponse Kind = "malformed_response"
)

// Retryable reports whether a later retry by the client may succeed.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindRateLimit
}

// Error is the terminal failure returned by a Generator.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "generator: " + string(e.Kind)
	}
	return fmt.Sprintf("generator: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// AsError extracts a *Error from err. Unknown errors are reported as
// non-retryable malformed responses so callers always get a kind.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Kind: KindMalformedResponse, Err: err}
}
