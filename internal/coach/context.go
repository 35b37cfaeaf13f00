package coach

import (
	"fmt"
	"math"
	"time"

	"github.com/strideloop/runcore/internal/history"
	"github.com/strideloop/runcore/internal/session"
)

// Snapshot is the immutable context a single evaluation cycle works on.
// Built once per tick from live metrics, the declared goal and whatever
// historical aggregates are available.
type Snapshot struct {
	At      time.Time
	Metrics session.Metrics
	Goal    session.Goal

	// HeartRateBPM is 0 when no heart-rate source is attached; heart-rate
	// detectors are disabled for the cycle in that case.
	HeartRateBPM int

	// History is nil when no usable aggregates exist; the personal-record
	// detector is disabled for the cycle in that case.
	History *history.Aggregates

	// Derived fields
	RemainingM     float64
	CompletionPct  float64
	HRZone         string
	FoodEquivalent string
	PaceText       string
	DurationText   string
	DistanceText   string
	CalorieText    string
}

// BuildSnapshot assembles the evaluation context for one cycle.
// Malformed inputs are clamped rather than propagated.
func BuildSnapshot(at time.Time, m session.Metrics, goal session.Goal, heartRateBPM int, hist *history.Aggregates) Snapshot {
	m.DistanceM = clampNonNegative(m.DistanceM)
	m.Calories = clampNonNegative(m.Calories)
	m.PaceMinPerKm = clampNonNegative(m.PaceMinPerKm)
	if m.Duration < 0 {
		m.Duration = 0
	}
	if heartRateBPM < 0 {
		heartRateBPM = 0
	}

	snap := Snapshot{
		At:           at,
		Metrics:      m,
		Goal:         goal,
		HeartRateBPM: heartRateBPM,
		History:      hist,
	}

	if goal.TargetDistanceM > 0 {
		snap.RemainingM = math.Max(0, goal.TargetDistanceM-m.DistanceM)
		snap.CompletionPct = math.Min(100, m.DistanceM/goal.TargetDistanceM*100)
	}

	snap.HRZone = HeartRateZone(heartRateBPM)
	snap.FoodEquivalent = FoodEquivalent(m.Calories)
	snap.PaceText = FormatPace(m.PaceMinPerKm)
	snap.DurationText = FormatDuration(m.Duration)
	snap.DistanceText = FormatDistance(m.DistanceM)
	snap.CalorieText = FormatCalories(m.Calories)

	return snap
}

// HasHeartRate reports whether a heart-rate reading is present this cycle.
func (s *Snapshot) HasHeartRate() bool {
	return s.HeartRateBPM > 0
}

func clampNonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// hrZoneBounds is the monotone threshold table mapping BPM to a zone name.
var hrZoneBounds = []struct {
	upTo int
	name string
}{
	{104, "very light"},
	{124, "light"},
	{144, "moderate"},
	{164, "hard"},
	{180, "very hard"},
}

// HeartRateZone maps a BPM reading to a zone name, "unknown" when absent.
func HeartRateZone(bpm int) string {
	if bpm <= 0 {
		return "unknown"
	}
	for _, b := range hrZoneBounds {
		if bpm < b.upTo {
			return b.name
		}
	}
	return "maximal"
}

// foodBuckets is the monotone threshold table mapping burned calories to a
// food equivalent used in announcement copy.
var foodBuckets = []struct {
	upTo float64
	name string
}{
	{90, "a small apple"},
	{150, "a banana"},
	{250, "a glass of cola"},
	{350, "a chocolate bar"},
	{550, "a slice of pizza"},
	{800, "a cheeseburger"},
}

// FoodEquivalent maps burned calories to a food-equivalent bucket.
func FoodEquivalent(calories float64) string {
	for _, b := range foodBuckets {
		if calories < b.upTo {
			return b.name
		}
	}
	return "a full meal"
}

// FormatPace renders minutes-per-km as 5'24" style text, or "--" when
// the pace is undefined.
func FormatPace(minPerKm float64) string {
	if minPerKm <= 0 {
		return "--"
	}
	minutes := int(minPerKm)
	seconds := int(math.Round((minPerKm - float64(minutes)) * 60))
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d'%02d\"", minutes, seconds)
}

// FormatDuration renders a duration as mm:ss, or h:mm:ss past the hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatDistance renders meters as "850 m" below one kilometer and
// "5.2 km" above it.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatCalories renders burned calories as whole kcal.
func FormatCalories(calories float64) string {
	return fmt.Sprintf("%.0f kcal", calories)
}
