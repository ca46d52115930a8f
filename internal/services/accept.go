package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/proposals"
	"github.com/tbourn/go-recipe-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AcceptInput is one accept command. RecipeText, Macros, and Explanation are
// what the user reviewed; empty text or nil macros fall back to the stored
// proposal.
type AcceptInput struct {
	UserID      string
	RecipeID    string
	LogID       string
	RecipeText  string
	Macros      *domain.Macros
	Explanation string
}

// AcceptanceCommitter applies a taken proposal to its recipe.
//
// Exactly-once rests on two independent guards: proposals.Store.Take hands
// out a proposal at most once, and the attempt row's accepted_at is set with
// an "IS NULL" predicate inside the commit transaction.
type AcceptanceCommitter struct {
	DB        *gorm.DB
	Proposals proposals.Store
	Now       func() time.Time
}

func (a *AcceptanceCommitter) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

// Commit validates the command against the attempt log and the stored
// proposal, then writes the recipe and marks the attempt accepted in one
// transaction.
func (a *AcceptanceCommitter) Commit(ctx context.Context, in AcceptInput) (recipe *domain.Recipe, err error) {
	tr := otel.Tracer("services/AcceptanceCommitter")
	ctx, span := tr.Start(ctx, "Commit",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("recipe.id", in.RecipeID),
			attribute.String("adaptation.log_id", in.LogID),
		),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		acceptOutcomes.WithLabelValues(outcomeLabel(err)).Inc()
		span.End()
	}()

	if err := a.checkLog(ctx, in.UserID, in.RecipeID, in.LogID); err != nil {
		return nil, err
	}

	p, err := a.Proposals.Take(ctx, in.LogID)
	if err != nil {
		return nil, wrap(KindInternal, fmt.Errorf("take proposal: %w", err))
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}

	text := strings.TrimSpace(in.RecipeText)
	if text == "" {
		text = p.ProposedRecipeText
	}
	macros := p.ProposedMacros
	if in.Macros != nil {
		macros = *in.Macros
	}
	explanation := in.Explanation
	if explanation == "" {
		explanation = p.Explanation
	}
	if verr := macros.Validate(); verr != nil {
		a.restore(ctx, *p)
		return nil, wrap(KindInvalidMacros, verr)
	}

	now := a.now()
	err = a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Ownership is re-checked on the recipe itself, not only via the log.
		if _, err := repo.GetRecipe(ctx, tx, in.RecipeID, in.UserID); err != nil {
			if isNotFound(err) {
				return ErrRecipeNotFound
			}
			return err
		}
		upd := repo.RecipeUpdate{Text: text, Macros: macros, Explanation: explanation, UpdatedAt: now}
		if err := repo.ApplyAdaptation(ctx, tx, in.RecipeID, in.UserID, upd); err != nil {
			if isNotFound(err) {
				return ErrRecipeNotFound
			}
			return err
		}
		if err := repo.MarkAdaptationAccepted(ctx, tx, in.LogID, in.UserID, in.RecipeID, now); err != nil {
			if isNotFound(err) {
				return ErrProposalNotFound
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrRecipeNotFound), errors.Is(err, ErrProposalNotFound):
		return nil, err
	default:
		// The write did not happen; give the proposal back so the user can retry.
		a.restore(ctx, *p)
		return nil, wrap(KindCommitFailed, err)
	}

	recipe, err = repo.GetRecipe(ctx, a.DB, in.RecipeID, in.UserID)
	if err != nil {
		return nil, wrap(KindInternal, fmt.Errorf("reload recipe: %w", err))
	}
	return recipe, nil
}

// Discard takes and drops the proposal for logID.
func (a *AcceptanceCommitter) Discard(ctx context.Context, userID, recipeID, logID string) error {
	tr := otel.Tracer("services/AcceptanceCommitter")
	ctx, span := tr.Start(ctx, "Discard",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("recipe.id", recipeID),
			attribute.String("adaptation.log_id", logID),
		),
	)
	defer span.End()

	if err := a.checkLog(ctx, userID, recipeID, logID); err != nil {
		return err
	}
	p, err := a.Proposals.Take(ctx, logID)
	if err != nil {
		return wrap(KindInternal, fmt.Errorf("take proposal: %w", err))
	}
	if p == nil {
		return ErrProposalNotFound
	}
	return nil
}

// checkLog requires an unaccepted attempt owned by (userID, recipeID).
// Foreign logs are indistinguishable from missing ones.
func (a *AcceptanceCommitter) checkLog(ctx context.Context, userID, recipeID, logID string) error {
	l, err := repo.GetAdaptationLog(ctx, a.DB, logID, userID, recipeID)
	if err != nil {
		if isNotFound(err) {
			return ErrProposalNotFound
		}
		return wrap(KindInternal, err)
	}
	if l.AcceptedAt != nil {
		return ErrProposalNotFound
	}
	return nil
}

func (a *AcceptanceCommitter) restore(ctx context.Context, p domain.AdaptationProposal) {
	if err := a.Proposals.Put(context.WithoutCancel(ctx), p); err != nil {
		loggerFrom(ctx).Error().Err(err).Str("log_id", p.LogID).Msg("failed to restore proposal")
	}
}
