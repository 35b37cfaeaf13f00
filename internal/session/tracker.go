package session

import (
	"time"

	"github.com/strideloop/runcore/internal/geo"
	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"

	"go.uber.org/zap"
)

// Acceptance classifies how the tracker handled one sample.
type Acceptance int

const (
	AcceptedBaseline Acceptance = iota
	Accepted
	RejectedAccuracy // display-only update, never accumulated
	RejectedPaused
	RejectedNoise // too small or too slow a step
	RejectedJump  // teleport artifact
	Rebaselined   // rejected, but the reference point moved forward
)

// String returns a short label for logging.
func (a Acceptance) String() string {
	switch a {
	case AcceptedBaseline:
		return "accepted_baseline"
	case Accepted:
		return "accepted"
	case RejectedAccuracy:
		return "rejected_accuracy"
	case RejectedPaused:
		return "rejected_paused"
	case RejectedNoise:
		return "rejected_noise"
	case RejectedJump:
		return "rejected_jump"
	case Rebaselined:
		return "rebaselined"
	default:
		return "unknown"
	}
}

// caloriesPerKgKm approximates the gross energy cost of level running.
const caloriesPerKgKm = 1.036

// Tracker consumes raw position samples, rejects noise and drift, and
// accumulates distance, duration, pace and calories for one session.
// Not safe for concurrent use; the engine serializes all calls.
type Tracker struct {
	cfg      config.FilterConfig
	weightKg float64
	logger   *logger.Logger

	startAt     time.Time
	pausedTotal time.Duration
	pausedAt    time.Time
	paused      bool
	finished    bool

	// baseline is the last accepted reference point. It can move forward
	// without crediting distance when a long rejection gap forces a
	// re-baseline.
	baseline   *Waypoint
	displayPos *geo.Point
	track      Track
	metrics    Metrics
}

// NewTracker creates a tracker for a session starting now.
func NewTracker(cfg config.FilterConfig, weightKg float64, log *logger.Logger, startAt time.Time) *Tracker {
	return &Tracker{
		cfg:      cfg,
		weightKg: weightKg,
		logger:   log.WithComponent("tracker"),
		startAt:  startAt,
	}
}

// Process feeds one raw sample through the acceptance pipeline.
func (t *Tracker) Process(s RawSample) Acceptance {
	if t.finished {
		return RejectedPaused
	}

	// Poor accuracy only refreshes the display position.
	if s.AccuracyM > t.cfg.MaxAccuracyM {
		p := s.Point()
		t.displayPos = &p
		t.logger.Debug("Sample rejected on accuracy",
			zap.Float64("accuracy_m", s.AccuracyM))
		return RejectedAccuracy
	}

	p := s.Point()
	t.displayPos = &p

	if t.paused {
		return RejectedPaused
	}

	// First usable sample anchors the session.
	if t.baseline == nil {
		w := Waypoint{Lat: s.Lat, Lon: s.Lon, Time: s.Time}
		t.baseline = &w
		t.track.Append(w)
		return AcceptedBaseline
	}

	delta := geo.Haversine(t.baseline.Lat, t.baseline.Lon, s.Lat, s.Lon)
	timeDelta := s.Time.Sub(t.baseline.Time).Seconds()

	verdict := t.classify(delta, timeDelta)
	switch verdict {
	case Accepted:
		w := Waypoint{Lat: s.Lat, Lon: s.Lon, Time: s.Time}
		t.baseline = &w
		t.track.Append(w)
		t.metrics.DistanceM += delta
		t.recompute()
	case RejectedNoise, RejectedJump:
		// A long gap since the last accepted point means the rejected
		// stream has drifted; move the reference forward so drift does
		// not compound, without crediting any distance.
		if s.Time.Sub(t.baseline.Time) > t.cfg.StaleRebaseline {
			w := Waypoint{Lat: s.Lat, Lon: s.Lon, Time: s.Time}
			t.baseline = &w
			return Rebaselined
		}
		t.logger.Debug("Sample rejected",
			zap.String("verdict", verdict.String()),
			zap.Float64("delta_m", delta),
			zap.Float64("time_delta_s", timeDelta))
	}
	return verdict
}

// classify applies the distance and speed gates to a candidate step.
func (t *Tracker) classify(delta, timeDelta float64) Acceptance {
	if delta >= t.cfg.MaxJumpM {
		return RejectedJump
	}
	if delta < t.cfg.MinMovementM || timeDelta <= 0 {
		return RejectedNoise
	}
	speed := delta / timeDelta
	if speed < t.cfg.MinSpeedMPS {
		return RejectedNoise
	}
	return Accepted
}

// Tick advances duration-derived metrics. Called by the periodic timer.
func (t *Tracker) Tick(now time.Time) {
	if t.finished || t.paused {
		return
	}
	t.metrics.Duration = now.Sub(t.startAt) - t.pausedTotal
	t.recompute()
}

// recompute refreshes pace and calories from the current totals.
func (t *Tracker) recompute() {
	km := t.metrics.DistanceKm()
	minutes := t.metrics.Duration.Minutes()
	if km > 0 && minutes > 0 {
		t.metrics.PaceMinPerKm = minutes / km
	} else {
		t.metrics.PaceMinPerKm = 0
	}
	t.metrics.Calories = t.weightKg * km * caloriesPerKgKm
}

// Pause stops accumulation. Samples arriving while paused only refresh the
// display position.
func (t *Tracker) Pause(now time.Time) {
	if t.paused || t.finished {
		return
	}
	t.metrics.Duration = now.Sub(t.startAt) - t.pausedTotal
	t.paused = true
	t.pausedAt = now
}

// Resume restarts accumulation after a pause.
func (t *Tracker) Resume(now time.Time) {
	if !t.paused || t.finished {
		return
	}
	t.pausedTotal += now.Sub(t.pausedAt)
	t.paused = false
	// The runner may have moved while paused; re-anchor on the next sample
	// instead of crediting the gap.
	t.baseline = nil
	if last, ok := t.track.Last(); ok {
		t.baseline = &last
	}
}

// Paused reports whether accumulation is suspended.
func (t *Tracker) Paused() bool {
	return t.paused
}

// Finish freezes the tracker and returns the final metrics and track.
func (t *Tracker) Finish(now time.Time) (Metrics, []Waypoint) {
	if !t.finished {
		if t.paused {
			t.Resume(now)
		}
		t.Tick(now)
		t.finished = true
	}
	return t.metrics, t.track.Waypoints()
}

// Metrics returns the current metrics snapshot.
func (t *Tracker) Metrics() Metrics {
	return t.metrics
}

// TrackLen returns the number of accepted waypoints.
func (t *Tracker) TrackLen() int {
	return t.track.Len()
}

// Route returns the accepted waypoints as coordinates.
func (t *Tracker) Route() []geo.Point {
	return t.track.Route()
}

// DisplayPosition returns the latest known position for UI display,
// regardless of whether it was accumulated.
func (t *Tracker) DisplayPosition() (geo.Point, bool) {
	if t.displayPos == nil {
		return geo.Point{}, false
	}
	return *t.displayPos, true
}

// StartedAt returns the session start time.
func (t *Tracker) StartedAt() time.Time {
	return t.startAt
}
