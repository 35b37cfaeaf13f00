package history

import (
	"context"
	"time"
)

// Aggregates are the runner's historical totals consumed by the context
// builder. A nil *Aggregates means no usable history: detectors that depend
// on it stay disabled for the session.
type Aggregates struct {
	RunnerID          string    `json:"runner_id"`
	TotalRuns         int       `json:"total_runs"`
	BestDistanceM     float64   `json:"best_distance_m"`
	LifetimeDistanceM float64   `json:"lifetime_distance_m"`
	MonthDistanceM    float64   `json:"month_distance_m"`
	MonthRuns         int       `json:"month_runs"`
	StreakDays        int       `json:"streak_days"`
	LastRunAt         time.Time `json:"last_run_at"`
}

// Repository provides access to a runner's historical aggregates.
type Repository interface {
	// Load returns the aggregates for a runner, or nil when none exist.
	Load(ctx context.Context, runnerID string) (*Aggregates, error)
	// Save stores the aggregates for a runner.
	Save(ctx context.Context, runnerID string, agg *Aggregates) error
}

// RecordRun folds one finished run into the aggregates.
func (a *Aggregates) RecordRun(distanceM float64, endedAt time.Time) {
	a.TotalRuns++
	a.LifetimeDistanceM += distanceM
	if distanceM > a.BestDistanceM {
		a.BestDistanceM = distanceM
	}

	if sameMonth(a.LastRunAt, endedAt) {
		a.MonthDistanceM += distanceM
		a.MonthRuns++
	} else {
		a.MonthDistanceM = distanceM
		a.MonthRuns = 1
	}

	switch {
	case a.LastRunAt.IsZero():
		a.StreakDays = 1
	case sameDay(a.LastRunAt, endedAt):
		// Second run of the day leaves the streak unchanged.
	case sameDay(a.LastRunAt.AddDate(0, 0, 1), endedAt):
		a.StreakDays++
	default:
		a.StreakDays = 1
	}

	a.LastRunAt = endedAt
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}
