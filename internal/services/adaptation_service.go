// Package services – AdaptationService
//
// This file implements the adaptation request controller. Propose runs one
// request through received → quota-checked → in-flight-acquired →
// generating → completed | pending | failed:
//
//  1. A cached outcome for the idempotency key is replayed unchanged, before
//     any guard is taken, and checked again once the guard is held.
//  2. The (user, recipe) in-flight guard is acquired; a busy guard is
//     adaptation_in_progress. Release is deferred on a context detached from
//     the caller, so it runs after success, typed failure, panic, or caller
//     cancellation.
//  3. The recipe is loaded for its owner and the quota window is computed in
//     the user's timezone. An exhausted quota fails before any log row or
//     generator call.
//  4. The attempt row is committed before the generator is called, so failed
//     generations still count.
//  5. The generator is called exactly once. A completed result becomes a
//     proposal in the proposal store; a pending result is returned as such.
//     Either is cached under the idempotency key.
//
// Observability: every public method is OpenTelemetry-instrumented and
// feeds the adaptation Prometheus collectors.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/generator"
	"github.com/tbourn/go-recipe-backend/internal/keystore"
	"github.com/tbourn/go-recipe-backend/internal/proposals"
	"github.com/tbourn/go-recipe-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultSystemContext = "You are a nutrition-aware cooking assistant. Keep the dish recognisable, " +
	"respect the user's preferences, and report per-serving macros with two decimals."

// ProposeInput is one propose call. IdempotencyKey and Notes are optional.
type ProposeInput struct {
	UserID         string
	RecipeID       string
	Goal           domain.Goal
	Notes          string
	IdempotencyKey string
}

// ProposeResult wraps the outcome. Replayed is true when the outcome came
// from the idempotency cache rather than from this call.
type ProposeResult struct {
	Outcome  domain.Outcome
	Replayed bool
}

// AdaptationService coordinates quota, guard, generator, and proposal store.
type AdaptationService struct {
	DB        *gorm.DB
	Keys      keystore.Store
	Proposals proposals.Store
	Generator generator.Generator
	Quota     QuotaCalculator

	// MaxKeyLen bounds idempotency keys (keystore.DefaultMaxKeyLen when 0).
	MaxKeyLen int
	// SystemContext is passed to the generator on every call.
	SystemContext string
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewAdaptationService wires a service with the real clock.
func NewAdaptationService(db *gorm.DB, keys keystore.Store, props proposals.Store, gen generator.Generator, dailyLimit int) *AdaptationService {
	return &AdaptationService{
		DB:            db,
		Keys:          keys,
		Proposals:     props,
		Generator:     gen,
		Quota:         QuotaCalculator{Limit: dailyLimit},
		MaxKeyLen:     keystore.DefaultMaxKeyLen,
		SystemContext: defaultSystemContext,
		Now:           time.Now,
	}
}

func (s *AdaptationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Propose runs one adaptation attempt. See the file comment for the order of
// checks; every failure is a *Error.
func (s *AdaptationService) Propose(ctx context.Context, in ProposeInput) (res *ProposeResult, err error) {
	tr := otel.Tracer("services/AdaptationService")
	ctx, span := tr.Start(ctx, "Propose",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("recipe.id", in.RecipeID),
			attribute.String("adaptation.goal", string(in.Goal)),
			attribute.Bool("idempotency.key_present", in.IdempotencyKey != ""),
		),
	)
	defer func() {
		label := outcomeLabel(err)
		if err == nil {
			label = string(res.Outcome.Status)
			if res.Replayed {
				label = "replayed"
			}
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		adaptationOutcomes.WithLabelValues(label).Inc()
		span.End()
	}()

	if !in.Goal.Valid() {
		return nil, wrap(KindInvalidGoal, fmt.Errorf("unknown goal %q", in.Goal))
	}
	if kerr := keystore.ValidateKey(in.IdempotencyKey, s.MaxKeyLen); kerr != nil {
		return nil, wrap(KindInvalidIdempotencyKey, kerr)
	}

	// Dedup fast path, before the guard.
	if res, err := s.replay(ctx, span, in); res != nil || err != nil {
		return res, err
	}

	token, acquired, gerr := s.Keys.BeginInFlight(ctx, in.UserID, in.RecipeID)
	if gerr != nil {
		return nil, wrap(KindInternal, fmt.Errorf("acquire in-flight guard: %w", gerr))
	}
	if !acquired {
		return nil, ErrAdaptationInProgress
	}
	adaptationInflight.Inc()
	defer s.release(ctx, in.UserID, in.RecipeID, token)

	// The original request may have recorded its outcome and released the
	// guard between the fast path and the acquire above.
	if res, err := s.replay(ctx, span, in); res != nil || err != nil {
		return res, err
	}

	out, err := s.propose(ctx, in)
	if err != nil {
		return nil, err
	}
	return &ProposeResult{Outcome: *out}, nil
}

// replay returns the outcome recorded for the idempotency key, or nil when
// there is no key or nothing is recorded yet.
func (s *AdaptationService) replay(ctx context.Context, span trace.Span, in ProposeInput) (*ProposeResult, error) {
	if in.IdempotencyKey == "" {
		return nil, nil
	}
	cached, err := s.Keys.Lookup(ctx, in.UserID, in.RecipeID, in.IdempotencyKey)
	if err != nil {
		return nil, wrap(KindInternal, fmt.Errorf("idempotency lookup: %w", err))
	}
	if cached == nil {
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("idempotency.replayed", true))
	return &ProposeResult{Outcome: *cached, Replayed: true}, nil
}

// release ends the guard on a context that survives caller cancellation.
func (s *AdaptationService) release(ctx context.Context, userID, recipeID, token string) {
	adaptationInflight.Dec()
	if err := s.Keys.EndInFlight(context.WithoutCancel(ctx), userID, recipeID, token); err != nil {
		loggerFrom(ctx).Error().Err(err).
			Str("user_id", userID).
			Str("recipe_id", recipeID).
			Msg("failed to release in-flight guard")
	}
}

// propose runs with the guard held.
func (s *AdaptationService) propose(ctx context.Context, in ProposeInput) (*domain.Outcome, error) {
	recipe, err := repo.GetRecipe(ctx, s.DB, in.RecipeID, in.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRecipeNotFound
		}
		return nil, wrap(KindInternal, err)
	}

	profile, err := repo.GetProfile(ctx, s.DB, in.UserID)
	if err != nil && !isNotFound(err) {
		return nil, wrap(KindInternal, err)
	}

	window, attempt, err := s.recordAttempt(ctx, in, profile.TimezoneOrDefault())
	if err != nil {
		return nil, err
	}

	req := generator.Request{
		SystemContext: s.SystemContext,
		Recipe:        *recipe,
		Goal:          in.Goal,
		Notes:         in.Notes,
	}
	if profile != nil {
		req.Preferences = profile.Preferences
	}
	result, err := s.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	// Persist what the caller will see even if it has gone away, so a retry
	// with the same key replays instead of spending another attempt.
	detached := context.WithoutCancel(ctx)

	out := domain.Outcome{Status: domain.OutcomePending, LogID: attempt.ID}
	if result.Status == generator.StatusCompleted {
		if verr := result.Macros.Validate(); verr != nil {
			return nil, wrap(KindGenerationFailed, &generator.Error{Kind: generator.KindMalformedResponse, Err: verr})
		}
		p := domain.AdaptationProposal{
			LogID:              attempt.ID,
			UserID:             in.UserID,
			RecipeID:           in.RecipeID,
			Goal:               in.Goal,
			ProposedRecipeText: result.Text,
			ProposedMacros:     result.Macros,
			Explanation:        result.Explanation,
			QuotaSnapshot:      window,
			RequestedAt:        attempt.CreatedAt,
			Notes:              in.Notes,
		}
		if perr := s.Proposals.Put(detached, p); perr != nil {
			return nil, wrap(KindInternal, fmt.Errorf("store proposal: %w", perr))
		}
		out = domain.Outcome{Status: domain.OutcomeCompleted, LogID: attempt.ID, Proposal: &p}
	}

	if in.IdempotencyKey != "" {
		if rerr := s.Keys.Record(detached, in.UserID, in.RecipeID, in.IdempotencyKey, out); rerr != nil {
			loggerFrom(ctx).Warn().Err(rerr).
				Str("recipe_id", in.RecipeID).
				Str("log_id", attempt.ID).
				Msg("failed to record idempotent outcome")
		}
	}
	return &out, nil
}

// recordAttempt checks the quota and appends the attempt row in one
// transaction. The returned window already includes the new attempt.
func (s *AdaptationService) recordAttempt(ctx context.Context, in ProposeInput, timezone string) (domain.QuotaWindow, *domain.AdaptationLog, error) {
	tr := otel.Tracer("services/AdaptationService")
	ctx, span := tr.Start(ctx, "recordAttempt", trace.WithAttributes(attribute.String("user.timezone", timezone)))
	defer span.End()

	now := s.now()
	var (
		window  domain.QuotaWindow
		attempt *domain.AdaptationLog
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockUserQuota(ctx, tx, in.UserID); err != nil {
			return err
		}
		w, err := s.Quota.Window(ctx, tx, in.UserID, timezone, now)
		if err != nil {
			return err
		}
		if w.Exhausted() {
			return &Error{Kind: KindQuotaExceeded, Window: &w}
		}
		l, err := repo.CreateAdaptationLog(ctx, tx, in.UserID, in.RecipeID, in.Goal, now)
		if err != nil {
			return err
		}
		window, err = ComputeWindow(now, timezone, w.Limit, w.Used+1)
		attempt = l
		return err
	})
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("quota.used", window.Used), attribute.Int("quota.limit", window.Limit))
		return window, attempt, nil
	case errors.Is(err, ErrQuotaExceeded):
		return domain.QuotaWindow{}, nil, err
	case errors.Is(err, ErrInvalidTimezone):
		return domain.QuotaWindow{}, nil, wrap(KindQuotaComputationFailed, err)
	default:
		return domain.QuotaWindow{}, nil, wrap(KindInternal, err)
	}
}

// generate calls the generator once. A panic inside the generator becomes an
// internal error so the caller's deferred guard release still runs normally.
func (s *AdaptationService) generate(ctx context.Context, req generator.Request) (res generator.Result, err error) {
	tr := otel.Tracer("services/AdaptationService")
	ctx, span := tr.Start(ctx, "generate")
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			loggerFrom(ctx).Error().Interface("panic", r).Msg("generator panicked")
			err = wrap(KindInternal, fmt.Errorf("generator panic: %v", r))
		}
		status := string(res.Status)
		if err != nil {
			status = "error"
			span.SetStatus(codes.Error, err.Error())
		}
		generatorLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
		span.End()
	}()

	res, err = s.Generator.Generate(ctx, req)
	if err != nil {
		ge := generator.AsError(err)
		span.SetAttributes(
			attribute.String("generator.error_kind", string(ge.Kind)),
			attribute.Bool("generator.retryable", ge.Retryable()),
		)
		return generator.Result{}, wrap(KindGenerationFailed, ge)
	}
	return res, nil
}

// QuotaStatus reports the caller's current window without side effects.
func (s *AdaptationService) QuotaStatus(ctx context.Context, userID string) (*domain.QuotaWindow, error) {
	tr := otel.Tracer("services/AdaptationService")
	ctx, span := tr.Start(ctx, "QuotaStatus", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	profile, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil && !isNotFound(err) {
		return nil, wrap(KindInternal, err)
	}
	w, err := s.Quota.Window(ctx, s.DB, userID, profile.TimezoneOrDefault(), s.now())
	if err != nil {
		if errors.Is(err, ErrInvalidTimezone) {
			return nil, wrap(KindQuotaComputationFailed, err)
		}
		return nil, wrap(KindInternal, err)
	}
	return &w, nil
}

// Accept commits a proposal onto its recipe. See AcceptanceCommitter.
func (s *AdaptationService) Accept(ctx context.Context, in AcceptInput) (*domain.Recipe, error) {
	return s.acceptor().Commit(ctx, in)
}

// Abandon discards the proposal for logID without touching the recipe.
// The attempt still counts against the quota.
func (s *AdaptationService) Abandon(ctx context.Context, userID, recipeID, logID string) error {
	return s.acceptor().Discard(ctx, userID, recipeID, logID)
}

func (s *AdaptationService) acceptor() *AcceptanceCommitter {
	return &AcceptanceCommitter{DB: s.DB, Proposals: s.Proposals, Now: s.Now}
}

// isNotFound treats repo-level not found sentinels as "not found".
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// loggerFrom returns the request logger stored on ctx, or the global one.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
