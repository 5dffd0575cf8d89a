// Package usage enforces per-plan monthly reply quotas and keeps the
// lifetime counters a user sees on their dashboard.
package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/avesohel/replypilot/internal/database"
)

// PlanLimits maps plan name to replies per calendar month. A plan missing
// from the map is treated as free.
var PlanLimits = map[string]int{
	"free":      50,
	"creator":   500,
	"pro":       2000,
	"unlimited": -1,
}

// Accountant charges generated replies against a user's plan and records
// per-reply outcomes.
type Accountant struct {
	db  *database.DB
	now func() time.Time
}

// New creates an accountant. The clock is injectable for tests.
func New(db *database.DB) *Accountant {
	return &Accountant{db: db, now: time.Now}
}

// LimitFor returns the monthly limit for a plan, -1 meaning unlimited.
func LimitFor(plan string) int {
	if limit, ok := PlanLimits[plan]; ok {
		return limit
	}
	return PlanLimits["free"]
}

// CanGenerate reports whether the user has quota left this period. The
// period counter is rolled over first, so a stale counter from last month
// never blocks a reply.
func (a *Accountant) CanGenerate(userID string) (bool, string, error) {
	s, err := a.rolled(userID)
	if err != nil {
		return false, "", err
	}

	limit := LimitFor(s.Plan)
	if limit < 0 {
		return true, "", nil
	}
	if s.PeriodReplies >= limit {
		return false, fmt.Sprintf("monthly limit of %d replies reached on plan %q", limit, s.Plan), nil
	}
	return true, "", nil
}

// Charge counts one generated reply against the current period and the
// lifetime total. Charging past the limit is the caller's bug; Charge does
// not re-check.
func (a *Accountant) Charge(userID string) error {
	s, err := a.rolled(userID)
	if err != nil {
		return err
	}
	s.PeriodReplies++
	s.TotalReplies++
	return a.db.UpdateSettings(s)
}

// RecordOutcome folds one reply's result into the running success rate and
// average latency. The rate is reconstructed from the stored percentage, so
// it drifts slightly over a long history; the dashboard only shows whole
// percents anyway.
func (a *Accountant) RecordOutcome(userID string, success bool, latency time.Duration) error {
	s, err := a.db.GetOrCreateSettings(userID)
	if err != nil {
		return err
	}

	successes := float64(s.SuccessRate) * float64(s.TotalReplies) / 100
	if success {
		successes++
	}
	s.SuccessRate = int(math.Round(successes / float64(s.TotalReplies+1) * 100))

	ms := int(latency.Milliseconds())
	if s.AvgLatencyMs == 0 {
		s.AvgLatencyMs = ms
	} else {
		s.AvgLatencyMs = (s.AvgLatencyMs*s.TotalReplies + ms) / (s.TotalReplies + 1)
	}

	return a.db.UpdateSettings(s)
}

// Remaining returns how many replies are left this period, -1 for
// unlimited plans.
func (a *Accountant) Remaining(userID string) (int, error) {
	s, err := a.rolled(userID)
	if err != nil {
		return 0, err
	}
	limit := LimitFor(s.Plan)
	if limit < 0 {
		return -1, nil
	}
	left := limit - s.PeriodReplies
	if left < 0 {
		left = 0
	}
	return left, nil
}

// rolled loads the settings and resets the period counter if the stored
// period start is from a previous calendar month. The reset is persisted
// immediately so concurrent readers see it.
func (a *Accountant) rolled(userID string) (*database.AISettings, error) {
	s, err := a.db.GetOrCreateSettings(userID)
	if err != nil {
		return nil, err
	}
	now := a.now()
	if !database.SameUsagePeriod(s.PeriodStart, now) {
		s.PeriodReplies = 0
		s.PeriodStart = database.PeriodStartFor(now)
		if err := a.db.UpdateSettings(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}
