package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// DefaultDailyLimit is the number of adaptation attempts per local day.
const DefaultDailyLimit = 3

var locCache sync.Map // name -> *time.Location

// LoadTimezone resolves an IANA identifier. Only an empty name means UTC;
// blank or padded values are invalid. "Local" is rejected because it would
// silently mean the server's zone.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" {
		name = "UTC"
	}
	if strings.TrimSpace(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	if v, ok := locCache.Load(name); ok {
		return v.(*time.Location), nil
	}
	if name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	locCache.Store(name, loc)
	return loc, nil
}

// ComputeWindow returns the quota window containing now for the given zone.
// WindowStart is the first instant of now's local calendar date and
// WindowEnd the first instant of the next date, both in UTC; on DST days the
// window is 23 or 25 hours long. used is the number of attempts already
// recorded inside the window.
func ComputeWindow(now time.Time, timezone string, limit, used int) (domain.QuotaWindow, error) {
	loc, err := LoadTimezone(timezone)
	if err != nil {
		return domain.QuotaWindow{}, err
	}
	y, m, d := now.In(loc).Date()
	start := startOfDay(y, m, d, loc)
	ny, nm, nd := time.Date(y, m, d+1, 12, 0, 0, 0, loc).Date()
	end := startOfDay(ny, nm, nd, loc)

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaWindow{
		Limit:       limit,
		Used:        used,
		Remaining:   remaining,
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		Timezone:    loc.String(),
	}, nil
}

// startOfDay returns local midnight, or the transition instant when a DST
// jump skips midnight (time.Date may normalize into the previous day then).
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty != y || tm != m || td != d {
		if _, end := t.ZoneBounds(); !end.IsZero() {
			return end
		}
	}
	return t
}

// QuotaCalculator binds ComputeWindow to the attempt log.
type QuotaCalculator struct {
	Limit int
}

// Window computes the window for userID at now and fills Used from the log.
func (q QuotaCalculator) Window(ctx context.Context, db *gorm.DB, userID, timezone string, now time.Time) (domain.QuotaWindow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	w, err := ComputeWindow(now, timezone, limit, 0)
	if err != nil {
		return domain.QuotaWindow{}, err
	}
	n, err := repo.CountAdaptationLogs(ctx, db, userID, w.WindowStart, w.WindowEnd)
	if err != nil {
		return domain.QuotaWindow{}, err
	}
	return ComputeWindow(now, timezone, limit, int(n))
}
