package keystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewGormStore(db, time.Hour, 0)
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   newGormStore(t),
	}
	if url := os.Getenv("TEST_REDIS_URL"); url != "" {
		client, err := NewRedisClient(context.Background(), url)
		if err != nil {
			t.Fatalf("redis: %v", err)
		}
		t.Cleanup(func() { _ = client.Close() })
		out["redis"] = NewRedisStore(client, time.Minute, time.Minute)
	}
	return out
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey("", 200); err != nil {
		t.Fatalf("empty key should be valid: %v", err)
	}
	if err := ValidateKey("retry-1:abc_~.", 200); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if err := ValidateKey(strings.Repeat("a", 201), 200); err != ErrInvalidKey {
		t.Fatalf("oversized key accepted: %v", err)
	}
	if err := ValidateKey(strings.Repeat("a", 200), 0); err != nil {
		t.Fatalf("default max length should allow 200: %v", err)
	}
	if err := ValidateKey("has space", 200); err != ErrInvalidKey {
		t.Fatalf("malformed key accepted: %v", err)
	}
}

func TestStore_InFlightGuard(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := "u-guard-" + name
			token, ok, err := s.BeginInFlight(ctx, user, "r1")
			if err != nil || !ok || token == "" {
				t.Fatalf("first begin: token=%q ok=%v err=%v", token, ok, err)
			}
			_, ok, err = s.BeginInFlight(ctx, user, "r1")
			if err != nil || ok {
				t.Fatalf("second begin should fail: ok=%v err=%v", ok, err)
			}
			// Only the holder's token clears the mark.
			if err := s.EndInFlight(ctx, user, "r1", "not-the-owner"); err != nil {
				t.Fatalf("foreign end: %v", err)
			}
			if _, ok, _ := s.BeginInFlight(ctx, user, "r1"); ok {
				t.Fatal("mark cleared by a non-owner")
			}
			if err := s.EndInFlight(ctx, user, "r1", token); err != nil {
				t.Fatalf("end: %v", err)
			}
			token, ok, err = s.BeginInFlight(ctx, user, "r1")
			if err != nil || !ok {
				t.Fatalf("begin after end: ok=%v err=%v", ok, err)
			}
			_ = s.EndInFlight(ctx, user, "r1", token)
		})
	}
}

func TestStore_ConcurrentBegin_SingleWinner(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := "u-race-" + name
			var wins int32
			var winner atomic.Value
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if token, ok, err := s.BeginInFlight(ctx, user, "r1"); err == nil && ok {
						atomic.AddInt32(&wins, 1)
						winner.Store(token)
					}
				}()
			}
			wg.Wait()
			if wins != 1 {
				t.Fatalf("expected one winner, got %d", wins)
			}
			_ = s.EndInFlight(ctx, user, "r1", winner.Load().(string))
		})
	}
}

// A slow holder whose mark was taken over must not free the new holder's
// mark when it finally releases.
func TestGormStore_TakeoverSurvivesLateRelease(t *testing.T) {
	s := newGormStore(t)
	s.StaleAfter = time.Minute
	ctx := context.Background()
	now := time.Now().UTC()
	s.Now = func() time.Time { return now }

	a, ok, err := s.BeginInFlight(ctx, "u1", "r1")
	if err != nil || !ok {
		t.Fatalf("A: ok=%v err=%v", ok, err)
	}
	now = now.Add(2 * time.Minute)
	b, ok, err := s.BeginInFlight(ctx, "u1", "r1")
	if err != nil || !ok {
		t.Fatalf("B should take over the stale mark: ok=%v err=%v", ok, err)
	}
	if err := s.EndInFlight(ctx, "u1", "r1", a); err != nil {
		t.Fatalf("A end: %v", err)
	}
	if _, ok, _ := s.BeginInFlight(ctx, "u1", "r1"); ok {
		t.Fatal("C acquired while B still holds the guard")
	}
	if err := s.EndInFlight(ctx, "u1", "r1", b); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.BeginInFlight(ctx, "u1", "r1"); !ok {
		t.Fatal("guard not free after B released")
	}
}

func TestRedisStore_TakeoverSurvivesLateRelease(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStore(client, time.Minute, 50*time.Millisecond)
	user := "u-takeover-" + fmt.Sprint(time.Now().UnixNano())

	a, ok, err := s.BeginInFlight(ctx, user, "r1")
	if err != nil || !ok {
		t.Fatalf("A: ok=%v err=%v", ok, err)
	}
	time.Sleep(150 * time.Millisecond)
	s.GuardTTL = time.Minute
	b, ok, err := s.BeginInFlight(ctx, user, "r1")
	if err != nil || !ok {
		t.Fatalf("B should acquire after expiry: ok=%v err=%v", ok, err)
	}
	if err := s.EndInFlight(ctx, user, "r1", a); err != nil {
		t.Fatalf("A end: %v", err)
	}
	if _, ok, _ := s.BeginInFlight(ctx, user, "r1"); ok {
		t.Fatal("C acquired while B still holds the guard")
	}
	_ = s.EndInFlight(ctx, user, "r1", b)
}

func TestStore_LookupRecord_FirstWinsAndTagged(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := "u-rec-" + name

			got, err := s.Lookup(ctx, user, "r1", "k1")
			if err != nil || got != nil {
				t.Fatalf("expected miss, got %v err=%v", got, err)
			}

			pending := domain.Outcome{Status: domain.OutcomePending, LogID: "l1"}
			if err := s.Record(ctx, user, "r1", "k1", pending); err != nil {
				t.Fatalf("record: %v", err)
			}
			other := domain.Outcome{Status: domain.OutcomeCompleted, LogID: "l2", Proposal: &domain.AdaptationProposal{LogID: "l2"}}
			if err := s.Record(ctx, user, "r1", "k1", other); err != nil {
				t.Fatalf("second record: %v", err)
			}

			got, err = s.Lookup(ctx, user, "r1", "k1")
			if err != nil || got == nil {
				t.Fatalf("lookup: %v err=%v", got, err)
			}
			a, _ := json.Marshal(pending)
			b, _ := json.Marshal(got)
			if string(a) != string(b) {
				t.Fatalf("outcome changed: want %s got %s", a, b)
			}

			// Keys are scoped by recipe.
			if got, _ := s.Lookup(ctx, user, "r2", "k1"); got != nil {
				t.Fatalf("key leaked across recipes")
			}
			// Empty key never hits the cache.
			if got, _ := s.Lookup(ctx, user, "r1", ""); got != nil {
				t.Fatalf("empty key should miss")
			}
		})
	}
}

func TestGormStore_OutcomeExpires(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s.Now = func() time.Time { return now }

	if err := s.Record(ctx, "u1", "r1", "k1", domain.Outcome{Status: domain.OutcomePending, LogID: "l1"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	got, err := s.Lookup(ctx, "u1", "r1", "k1")
	if err != nil || got != nil {
		t.Fatalf("expected expired outcome to miss, got %v err=%v", got, err)
	}
}

func TestMemoryStore_InFlightIntrospection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	token, _, _ := s.BeginInFlight(ctx, "u1", "r1")
	if !s.InFlight("u1", "r1") {
		t.Fatal("expected pair to be marked")
	}
	_ = s.EndInFlight(ctx, "u1", "r1", token)
	if s.InFlight("u1", "r1") {
		t.Fatal("expected pair to be cleared")
	}
}
