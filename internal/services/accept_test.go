package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

func proposeOK(t *testing.T, f *fixture, user, recipeID string) *domain.AdaptationProposal {
	t.Helper()
	res, err := propose(f, user, recipeID, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	return res.Outcome.Proposal
}

func TestAccept_CommitsProposalOnce(t *testing.T) {
	f := newFixture(t, 3)
	r := f.recipe(t, "u1", 1000)
	p := proposeOK(t, f, "u1", r.ID)

	f.now = f.now.Add(5 * time.Minute)
	in := AcceptInput{UserID: "u1", RecipeID: r.ID, LogID: p.LogID}
	got, err := f.svc.Accept(context.Background(), in)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Macros.Kcal != 900 || got.Text != p.ProposedRecipeText || got.Explanation != p.Explanation {
		t.Fatalf("recipe not updated from proposal: %+v", got)
	}
	if got.Version != 2 || !got.UpdatedAt.Equal(f.now) {
		t.Fatalf("version/updated_at wrong: v=%d at=%s", got.Version, got.UpdatedAt)
	}

	_, err = f.svc.Accept(context.Background(), in)
	if !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("second accept should be proposal_not_found, got %v", err)
	}

	// Even if the proposal reappeared in the store, the log guard holds.
	_ = f.props.Put(context.Background(), *p)
	_, err = f.svc.Accept(context.Background(), in)
	if !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("accepted log must not be reusable, got %v", err)
	}
}

func TestAccept_UserEditedValues(t *testing.T) {
	f := newFixture(t, 3)
	r := f.recipe(t, "u1", 1000)
	p := proposeOK(t, f, "u1", r.ID)

	m := domain.Macros{Kcal: 850.5, Protein: 22.25, Carbs: 80, Fat: 30}
	got, err := f.svc.Accept(context.Background(), AcceptInput{
		UserID: "u1", RecipeID: r.ID, LogID: p.LogID,
		RecipeText: "my tweak", Macros: &m, Explanation: "edited",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "my tweak" || got.Macros != m || got.Explanation != "edited" {
		t.Fatalf("edited values not applied: %+v", got)
	}
}

func TestAccept_InvalidMacrosKeepsProposal(t *testing.T) {
	f := newFixture(t, 3)
	r := f.recipe(t, "u1", 1000)
	p := proposeOK(t, f, "u1", r.ID)

	bad := domain.Macros{Kcal: 899.999}
	_, err := f.svc.Accept(context.Background(), AcceptInput{UserID: "u1", RecipeID: r.ID, LogID: p.LogID, Macros: &bad})
	if !errors.Is(err, ErrInvalidMacros) {
		t.Fatalf("expected invalid_macros, got %v", err)
	}
	if _, err := f.svc.Accept(context.Background(), AcceptInput{UserID: "u1", RecipeID: r.ID, LogID: p.LogID}); err != nil {
		t.Fatalf("proposal should survive a rejected accept: %v", err)
	}
}

func TestAccept_ForeignOrMismatchedLog(t *testing.T) {
	f := newFixture(t, 3)
	r := f.recipe(t, "u1", 1000)
	other := f.recipe(t, "u1", 500)
	p := proposeOK(t, f, "u1", r.ID)

	cases := []AcceptInput{
		{UserID: "u2", RecipeID: r.ID, LogID: p.LogID},     // other user
		{UserID: "u1", RecipeID: other.ID, LogID: p.LogID}, // other recipe
		{UserID: "u1", RecipeID: r.ID, LogID: "missing"},   // unknown log
	}
	for _, in := range cases {
		if _, err := f.svc.Accept(context.Background(), in); !errors.Is(err, ErrProposalNotFound) {
			t.Fatalf("%+v: expected proposal_not_found, got %v", in, err)
		}
	}
	// Mismatches must not consume the proposal.
	if _, err := f.svc.Accept(context.Background(), AcceptInput{UserID: "u1", RecipeID: r.ID, LogID: p.LogID}); err != nil {
		t.Fatalf("owner accept after rejected attempts: %v", err)
	}
}

func TestAccept_RecipeDeletedConcurrently(t *testing.T) {
	f := newFixture(t, 3)
	r := f.recipe(t, "u1", 1000)
	p := proposeOK(t, f, "u1", r.ID)

	if err := f.db.Delete(&domain.Recipe{}, "id = ?", r.ID).Error; err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Accept(context.Background(), AcceptInput{UserID: "u1", RecipeID: r.ID, LogID: p.LogID})
	if !errors.Is(err, ErrRecipeNotFound) {
		t.Fatalf("expected recipe_not_found, got %v", err)
	}
	l, _ := repo.GetAdaptationLog(context.Background(), f.db, p.LogID, "u1", r.ID)
	if l.AcceptedAt != nil {
		t.Fatal("log must not be marked accepted when the recipe write failed")
	}
}

func TestAbandon_DiscardsProposal(t *testing.T) {
	f := newFixture(t, 3)
	r := f.recipe(t, "u1", 1000)
	p := proposeOK(t, f, "u1", r.ID)

	if err := f.svc.Abandon(context.Background(), "u1", r.ID, p.LogID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if err := f.svc.Abandon(context.Background(), "u1", r.ID, p.LogID); !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("second abandon: %v", err)
	}
	if _, err := f.svc.Accept(context.Background(), AcceptInput{UserID: "u1", RecipeID: r.ID, LogID: p.LogID}); !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("accept after abandon: %v", err)
	}
	// The attempt still counts.
	w, _ := f.svc.QuotaStatus(context.Background(), "u1")
	if w.Used != 1 {
		t.Fatalf("abandon must not refund quota, used=%d", w.Used)
	}
}
