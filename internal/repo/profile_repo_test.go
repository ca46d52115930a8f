package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

func TestProfile_UpsertAndGet(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})
	ctx := context.Background()

	if _, err := GetProfile(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before upsert, got %v", err)
	}

	tz := "Asia/Kolkata"
	p, err := UpsertProfile(ctx, db, "u1", &tz, "vegetarian")
	if err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if p.TimezoneOrDefault() != tz || p.Preferences != "vegetarian" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	p, err = UpsertProfile(ctx, db, "u1", nil, "")
	if err != nil {
		t.Fatalf("second UpsertProfile: %v", err)
	}
	if p.Timezone != nil || p.TimezoneOrDefault() != "UTC" {
		t.Fatalf("expected timezone cleared, got %+v", p)
	}
}
