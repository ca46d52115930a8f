package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

func TestCreateRecipe_Error_NoTable(t *testing.T) {
	db := newRepoDB(t)
	r, err := CreateRecipe(context.Background(), db, "u1", "t", "x", domain.Macros{})
	if err == nil || r != nil {
		t.Fatalf("expected error creating without table, got r=%v err=%v", r, err)
	}
}

func TestCreateAndGetRecipe_OwnerScoped(t *testing.T) {
	db := newRepoDB(t, &domain.Recipe{})
	ctx := context.Background()

	r, err := CreateRecipe(ctx, db, "u1", "Lasagna", "layers", domain.Macros{Kcal: 1000.004, Protein: 40})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if r.ID == "" || r.Version != 1 || r.Macros.Kcal != 1000 {
		t.Fatalf("unexpected recipe: %+v", r)
	}

	got, err := GetRecipe(ctx, db, r.ID, "u1")
	if err != nil || got.Title != "Lasagna" {
		t.Fatalf("GetRecipe: got=%+v err=%v", got, err)
	}
	if _, err := GetRecipe(ctx, db, r.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestApplyAdaptation_UpdatesAndBumpsVersion(t *testing.T) {
	db := newRepoDB(t, &domain.Recipe{})
	ctx := context.Background()
	r, err := CreateRecipe(ctx, db, "u1", "Soup", "water", domain.Macros{Kcal: 100})
	if err != nil {
		t.Fatal(err)
	}

	at := time.Now().UTC().Add(time.Minute)
	upd := RecipeUpdate{Text: "less water", Macros: domain.Macros{Kcal: 90, Protein: 1.5}, Explanation: "lighter", UpdatedAt: at}
	if err := ApplyAdaptation(ctx, db, r.ID, "u1", upd); err != nil {
		t.Fatalf("ApplyAdaptation: %v", err)
	}
	got, _ := GetRecipe(ctx, db, r.ID, "u1")
	if got.Text != "less water" || got.Macros.Kcal != 90 || got.Macros.Protein != 1.5 || got.Explanation != "lighter" || got.Version != 2 {
		t.Fatalf("unexpected recipe after update: %+v", got)
	}
}

func TestApplyAdaptation_NotOwnedOrDeleted(t *testing.T) {
	db := newRepoDB(t, &domain.Recipe{})
	ctx := context.Background()
	r, _ := CreateRecipe(ctx, db, "u1", "Soup", "water", domain.Macros{})

	upd := RecipeUpdate{Text: "x", UpdatedAt: time.Now()}
	if err := ApplyAdaptation(ctx, db, r.ID, "u2", upd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if err := db.Delete(&domain.Recipe{}, "id = ?", r.ID).Error; err != nil {
		t.Fatal(err)
	}
	if err := ApplyAdaptation(ctx, db, r.ID, "u1", upd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for soft-deleted recipe, got %v", err)
	}
}
