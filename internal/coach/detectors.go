package coach

import (
	"fmt"
	"time"

	"github.com/strideloop/runcore/internal/session"
	"github.com/strideloop/runcore/pkg/logger"

	"go.uber.org/zap"
)

// EvaluatorConfig holds detector tuning.
type EvaluatorConfig struct {
	MinHistoryRuns int

	TargetZoneLowBPM  int
	TargetZoneHighBPM int
	HighHRBoundBPM    int
	HighHRMinDuration time.Duration

	PaceWindowMax     int
	PaceWindowMaxAge  time.Duration
	PaceMinSamples    int
	PaceEdgeSamples   int
	PaceDeltaMinPerKm float64
}

// DefaultEvaluatorConfig returns production detector tuning.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		MinHistoryRuns:    5,
		TargetZoneLowBPM:  140,
		TargetZoneHighBPM: 160,
		HighHRBoundBPM:    172,
		HighHRMinDuration: 10 * time.Second,
		PaceWindowMax:     30,
		PaceWindowMaxAge:  3 * time.Minute,
		PaceMinSamples:    8,
		PaceEdgeSamples:   3,
		PaceDeltaMinPerKm: 0.5,
	}
}

// timeMilestonesMin are elapsed-minute thresholds, ascending. Each fires
// inside a half-open tolerance window so a crossing between ticks is not
// missed and a stale crossing is not announced late.
var timeMilestonesMin = []float64{5, 10, 15, 20, 30, 45, 60, 90, 120}

// timeMilestoneWindowMin is the tolerance window width in minutes.
const timeMilestoneWindowMin = 0.5

// distanceMilestonesM lists announcement thresholds per goal category, so
// marathon-length milestones never apply to a short goal. The goal distance
// itself is handled by the goal-completed detector.
var distanceMilestonesM = map[session.GoalCategory][]float64{
	session.GoalFiveK:        {1000, 2000, 3000, 4000},
	session.GoalTenK:         {1000, 2000, 3000, 5000, 8000},
	session.GoalHalfMarathon: {1000, 5000, 10000, 15000, 20000},
	session.GoalMarathon:     {5000, 10000, 20000, 30000, 40000},
	session.GoalOpen:         {1000, 3000, 5000, 10000, 15000, 21097.5, 30000, 42195},
}

// calorieMilestones are burned-calorie thresholds with a narrow tolerance
// band, preventing re-firing long after a threshold has passed.
var calorieMilestones = []float64{100, 200, 300, 400, 500, 750, 1000}

// calorieToleranceBand is the width of the firing band in kcal.
const calorieToleranceBand = 30.0

type paceSample struct {
	at   time.Time
	pace float64
}

// Evaluator runs the fixed set of detectors against one snapshot per cycle
// and forwards at most one candidate. Not safe for concurrent use.
type Evaluator struct {
	cfg    EvaluatorConfig
	logger *logger.Logger

	timeFired map[int]bool
	distFired map[int]bool
	calFired  map[int]bool

	halfwayReported bool
	goalReported    bool
	prReported      bool
	zoneReported    bool

	highHRSince    time.Time
	highHRReported bool

	paceBuf []paceSample
}

// NewEvaluator creates an evaluator with empty per-session state.
func NewEvaluator(cfg EvaluatorConfig, log *logger.Logger) *Evaluator {
	return &Evaluator{
		cfg:       cfg,
		logger:    log.WithComponent("evaluator"),
		timeFired: make(map[int]bool),
		distFired: make(map[int]bool),
		calFired:  make(map[int]bool),
	}
}

// candidate pairs a detector result with the state change to apply if it
// wins the cycle. Losing candidates stay unconsumed and may re-qualify on a
// later cycle.
type scoredCandidate struct {
	cand   *Candidate
	commit func()
}

// Evaluate runs every detector against the snapshot and returns the single
// highest-priority candidate, or nil. Detector-internal state (pace buffer,
// sustained-HR timer) advances every cycle regardless of the outcome.
func (e *Evaluator) Evaluate(snap Snapshot) *Candidate {
	e.observePace(snap)
	e.observeHeartRate(snap)

	var best *scoredCandidate
	consider := func(sc *scoredCandidate) {
		if sc == nil || sc.cand == nil {
			return
		}
		if best == nil || sc.cand.Priority() > best.cand.Priority() {
			best = sc
		}
	}

	consider(e.goalCompleted(snap))
	consider(e.personalRecord(snap))
	consider(e.halfway(snap))
	consider(e.distanceMilestone(snap))
	consider(e.sustainedHighHR(snap))
	consider(e.zoneEntry(snap))
	consider(e.timeMilestone(snap))
	consider(e.calorieMilestone(snap))
	consider(e.paceTrend(snap))

	if best == nil {
		return nil
	}
	if best.commit != nil {
		best.commit()
	}
	e.logger.Debug("Candidate selected",
		zap.String("kind", best.cand.Kind.String()),
		zap.Int("priority", best.cand.Priority()))
	return best.cand
}

// observePace feeds the rolling pace buffer, bounded by count and age.
func (e *Evaluator) observePace(snap Snapshot) {
	if snap.Metrics.PaceMinPerKm <= 0 {
		return
	}
	e.paceBuf = append(e.paceBuf, paceSample{at: snap.At, pace: snap.Metrics.PaceMinPerKm})
	for len(e.paceBuf) > e.cfg.PaceWindowMax {
		e.paceBuf = e.paceBuf[1:]
	}
	for len(e.paceBuf) > 0 && snap.At.Sub(e.paceBuf[0].at) > e.cfg.PaceWindowMaxAge {
		e.paceBuf = e.paceBuf[1:]
	}
}

// observeHeartRate advances the sustained-high-HR timer. Any reading below
// the bound clears the timer and the requirement starts over.
func (e *Evaluator) observeHeartRate(snap Snapshot) {
	if !snap.HasHeartRate() || snap.HeartRateBPM < e.cfg.HighHRBoundBPM {
		e.highHRSince = time.Time{}
		e.highHRReported = false
		return
	}
	if e.highHRSince.IsZero() {
		e.highHRSince = snap.At
	}
}

func (e *Evaluator) goalCompleted(snap Snapshot) *scoredCandidate {
	if e.goalReported || snap.Goal.TargetDistanceM <= 0 {
		return nil
	}
	if snap.Metrics.DistanceM < snap.Goal.TargetDistanceM {
		return nil
	}
	text := fmt.Sprintf("Goal complete! %s in %s, average pace %s per kilometer. Well done!",
		FormatDistance(snap.Goal.TargetDistanceM), snap.DurationText, snap.PaceText)
	return &scoredCandidate{
		cand:   &Candidate{Kind: EventGoalCompleted, Text: text, At: snap.At},
		commit: func() { e.goalReported = true },
	}
}

func (e *Evaluator) personalRecord(snap Snapshot) *scoredCandidate {
	if e.prReported || snap.History == nil {
		return nil
	}
	if snap.History.TotalRuns < e.cfg.MinHistoryRuns || snap.History.BestDistanceM <= 0 {
		return nil
	}
	if snap.Metrics.DistanceM <= snap.History.BestDistanceM {
		return nil
	}
	text := fmt.Sprintf("New record! This is your longest run ever, passing %s. Keep it going!",
		FormatDistance(snap.History.BestDistanceM))
	return &scoredCandidate{
		cand:   &Candidate{Kind: EventPersonalRecord, Text: text, At: snap.At},
		commit: func() { e.prReported = true },
	}
}

func (e *Evaluator) halfway(snap Snapshot) *scoredCandidate {
	if e.halfwayReported || snap.Goal.TargetDistanceM <= 0 {
		return nil
	}
	if snap.CompletionPct < 50 || snap.CompletionPct >= 100 {
		return nil
	}
	text := fmt.Sprintf("Halfway there. %s done, %s to go.",
		snap.DistanceText, FormatDistance(snap.RemainingM))
	return &scoredCandidate{
		cand:   &Candidate{Kind: EventHalfway, Text: text, At: snap.At},
		commit: func() { e.halfwayReported = true },
	}
}

func (e *Evaluator) distanceMilestone(snap Snapshot) *scoredCandidate {
	thresholds := distanceMilestonesM[snap.Goal.Category]
	for i := len(thresholds) - 1; i >= 0; i-- {
		th := thresholds[i]
		if e.distFired[i] || snap.Metrics.DistanceM < th {
			continue
		}
		// Highest crossed threshold wins; skipped intermediates are
		// consumed without a separate announcement.
		idx := i
		text := fmt.Sprintf("You've passed %s in %s. Current pace %s per kilometer.",
			FormatDistance(th), snap.DurationText, snap.PaceText)
		return &scoredCandidate{
			cand: &Candidate{Kind: EventDistanceMilestone, Text: text, At: snap.At},
			commit: func() {
				for j := 0; j <= idx; j++ {
					e.distFired[j] = true
				}
			},
		}
	}
	return nil
}

func (e *Evaluator) sustainedHighHR(snap Snapshot) *scoredCandidate {
	if e.highHRReported || e.highHRSince.IsZero() {
		return nil
	}
	if snap.At.Sub(e.highHRSince) < e.cfg.HighHRMinDuration {
		return nil
	}
	text := fmt.Sprintf("Your heart rate has stayed above %d for a while. Consider easing off the pace.",
		e.cfg.HighHRBoundBPM)
	return &scoredCandidate{
		cand:   &Candidate{Kind: EventSustainedHighHR, Text: text, At: snap.At},
		commit: func() { e.highHRReported = true },
	}
}

func (e *Evaluator) zoneEntry(snap Snapshot) *scoredCandidate {
	if e.zoneReported || !snap.HasHeartRate() {
		return nil
	}
	if snap.HeartRateBPM < e.cfg.TargetZoneLowBPM || snap.HeartRateBPM > e.cfg.TargetZoneHighBPM {
		return nil
	}
	text := fmt.Sprintf("You're in your target heart-rate zone at %d beats per minute. Hold this effort.",
		snap.HeartRateBPM)
	return &scoredCandidate{
		cand:   &Candidate{Kind: EventHRZoneEntry, Text: text, At: snap.At},
		commit: func() { e.zoneReported = true },
	}
}

func (e *Evaluator) timeMilestone(snap Snapshot) *scoredCandidate {
	minutes := snap.Metrics.Duration.Minutes()
	for i := len(timeMilestonesMin) - 1; i >= 0; i-- {
		th := timeMilestonesMin[i]
		if e.timeFired[i] {
			continue
		}
		// Half-open tolerance window: a crossing between ticks is caught,
		// a long-past crossing never fires.
		if minutes < th || minutes >= th+timeMilestoneWindowMin {
			continue
		}
		idx := i
		text := fmt.Sprintf("%.0f minutes in. You've covered %s, burning %s.",
			th, snap.DistanceText, snap.CalorieText)
		return &scoredCandidate{
			cand:   &Candidate{Kind: EventTimeMilestone, Text: text, At: snap.At},
			commit: func() { e.timeFired[idx] = true },
		}
	}
	return nil
}

func (e *Evaluator) calorieMilestone(snap Snapshot) *scoredCandidate {
	for i := len(calorieMilestones) - 1; i >= 0; i-- {
		th := calorieMilestones[i]
		if e.calFired[i] {
			continue
		}
		if snap.Metrics.Calories < th || snap.Metrics.Calories >= th+calorieToleranceBand {
			continue
		}
		idx := i
		text := fmt.Sprintf("%.0f calories burned, about %s worth.", th, snap.FoodEquivalent)
		return &scoredCandidate{
			cand:   &Candidate{Kind: EventCalorieMilestone, Text: text, At: snap.At},
			commit: func() { e.calFired[idx] = true },
		}
	}
	return nil
}

func (e *Evaluator) paceTrend(snap Snapshot) *scoredCandidate {
	if len(e.paceBuf) < e.cfg.PaceMinSamples {
		return nil
	}
	n := e.cfg.PaceEdgeSamples
	early := meanPace(e.paceBuf[:n])
	recent := meanPace(e.paceBuf[len(e.paceBuf)-n:])
	delta := recent - early

	switch {
	case delta <= -e.cfg.PaceDeltaMinPerKm:
		text := fmt.Sprintf("Nice, your pace has picked up to %s per kilometer.", snap.PaceText)
		return &scoredCandidate{
			cand: &Candidate{Kind: EventPaceImproved, Text: text, At: snap.At},
		}
	case delta >= e.cfg.PaceDeltaMinPerKm:
		text := fmt.Sprintf("Your pace has dropped to %s per kilometer. Find your rhythm again.", snap.PaceText)
		return &scoredCandidate{
			cand: &Candidate{Kind: EventPaceDropped, Text: text, At: snap.At},
		}
	}
	return nil
}

func meanPace(samples []paceSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.pace
	}
	return sum / float64(len(samples))
}
