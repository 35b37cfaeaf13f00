package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"
)

// Latitude degrees per meter of northward movement on the test sphere.
const degPerMeter = 1.0 / 111194.92664455873

var testFilterConfig = config.FilterConfig{
	MaxAccuracyM:    50,
	MinMovementM:    5,
	MaxJumpM:        100,
	MinSpeedMPS:     0.6,
	StaleRebaseline: 3 * time.Second,
}

func newTestTracker(t *testing.T, startAt time.Time) *Tracker {
	t.Helper()
	return NewTracker(testFilterConfig, 70, logger.NewDefault(), startAt)
}

func sampleAt(meters, accuracy float64, at time.Time) RawSample {
	// Move due north from the equator so one meter maps cleanly to degrees.
	return RawSample{Lat: meters * degPerMeter, Lon: 10.0, AccuracyM: accuracy, Time: at}
}

func TestTracker_BaselineAndAccumulation(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)

	// Poor-accuracy sample before any baseline: display-only.
	verdict := tr.Process(sampleAt(0, 60, start))
	assert.Equal(t, RejectedAccuracy, verdict)
	assert.Equal(t, 0, tr.TrackLen())
	_, haveDisplay := tr.DisplayPosition()
	assert.True(t, haveDisplay, "rejected sample must still refresh the display position")

	// First usable sample becomes the baseline with no delta.
	verdict = tr.Process(sampleAt(0, 10, start.Add(1*time.Second)))
	assert.Equal(t, AcceptedBaseline, verdict)
	assert.Equal(t, 1, tr.TrackLen())
	assert.Equal(t, 0.0, tr.Metrics().DistanceM)

	// 20 m in 5 s: 4 m/s, accepted.
	verdict = tr.Process(sampleAt(20, 10, start.Add(6*time.Second)))
	assert.Equal(t, Accepted, verdict)
	assert.Equal(t, 2, tr.TrackLen())
	assert.InDelta(t, 20.0, tr.Metrics().DistanceM, 0.01)
}

func TestTracker_RejectsDriftAndTeleports(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		meters  float64
		dt      time.Duration
		verdict Acceptance
	}{
		{"too small a step", 2, 1 * time.Second, RejectedNoise},
		// A slow step implies a long gap, so it ends as a re-baseline.
		{"too slow for the distance", 6, 60 * time.Second, Rebaselined},
		{"teleport artifact", 150, 2 * time.Second, RejectedJump},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTestTracker(t, start)
			require.Equal(t, AcceptedBaseline, tr.Process(sampleAt(0, 10, start)))
			got := tr.Process(sampleAt(tc.meters, 10, start.Add(tc.dt)))
			assert.Equal(t, tc.verdict, got)
			assert.Equal(t, 0.0, tr.Metrics().DistanceM)
			assert.Equal(t, 1, tr.TrackLen())
		})
	}
}

func TestTracker_AcceptedDeltasSumToDistance(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)
	require.Equal(t, AcceptedBaseline, tr.Process(sampleAt(0, 10, start)))

	var sum float64
	pos := 0.0
	at := start
	steps := []float64{10, 20, 15, 8, 50, 30}
	for _, step := range steps {
		pos += step
		at = at.Add(5 * time.Second)
		verdict := tr.Process(sampleAt(pos, 10, at))
		require.Equal(t, Accepted, verdict)
		sum += step
	}

	m := tr.Metrics()
	assert.InDelta(t, sum, m.DistanceM, 0.05)
	assert.Equal(t, len(steps)+1, tr.TrackLen())

	// Distance never decreases: another rejection cannot shrink it.
	tr.Process(sampleAt(pos+1, 10, at.Add(1*time.Second)))
	assert.GreaterOrEqual(t, tr.Metrics().DistanceM, sum-0.05)
}

func TestTracker_RebaselineAfterStaleGap(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)
	require.Equal(t, AcceptedBaseline, tr.Process(sampleAt(0, 10, start)))

	// A jump rejection 10 s after the baseline moves the reference point
	// without crediting distance.
	verdict := tr.Process(sampleAt(150, 10, start.Add(10*time.Second)))
	assert.Equal(t, Rebaselined, verdict)
	assert.Equal(t, 0.0, tr.Metrics().DistanceM)
	assert.Equal(t, 1, tr.TrackLen())

	// The next delta is measured from the new reference.
	verdict = tr.Process(sampleAt(170, 10, start.Add(15*time.Second)))
	assert.Equal(t, Accepted, verdict)
	assert.InDelta(t, 20.0, tr.Metrics().DistanceM, 0.05)
}

func TestTracker_PauseExcludesSamplesAndTime(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)
	require.Equal(t, AcceptedBaseline, tr.Process(sampleAt(0, 10, start)))
	require.Equal(t, Accepted, tr.Process(sampleAt(20, 10, start.Add(5*time.Second))))

	tr.Pause(start.Add(10 * time.Second))
	assert.True(t, tr.Paused())

	// Samples during pause never accumulate.
	verdict := tr.Process(sampleAt(60, 10, start.Add(20*time.Second)))
	assert.Equal(t, RejectedPaused, verdict)
	assert.InDelta(t, 20.0, tr.Metrics().DistanceM, 0.05)

	tr.Resume(start.Add(40 * time.Second))
	tr.Tick(start.Add(50 * time.Second))

	// 50 s elapsed minus 30 s paused.
	assert.Equal(t, 20*time.Second, tr.Metrics().Duration)
}

func TestTracker_PaceAndCalories(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)
	require.Equal(t, AcceptedBaseline, tr.Process(sampleAt(0, 10, start)))

	// Cover 1 km in 50 m steps over 5 minutes.
	pos := 0.0
	at := start
	for i := 0; i < 20; i++ {
		pos += 50
		at = at.Add(15 * time.Second)
		require.Equal(t, Accepted, tr.Process(sampleAt(pos, 20, at)))
	}
	tr.Tick(at)

	m := tr.Metrics()
	assert.InDelta(t, 1000.0, m.DistanceM, 0.5)
	assert.InDelta(t, 5.0, m.PaceMinPerKm, 0.01)
	// 70 kg over 1 km at 1.036 kcal/kg/km.
	assert.InDelta(t, 72.5, m.Calories, 0.2)
}

func TestTracker_ZeroPaceWhenUndefined(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)
	tr.Tick(start.Add(time.Minute))
	assert.Equal(t, 0.0, tr.Metrics().PaceMinPerKm)
}

func TestTracker_FinishFreezesMetrics(t *testing.T) {
	start := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, start)
	require.Equal(t, AcceptedBaseline, tr.Process(sampleAt(0, 10, start)))
	require.Equal(t, Accepted, tr.Process(sampleAt(20, 10, start.Add(5*time.Second))))

	metrics, track := tr.Finish(start.Add(10 * time.Second))
	assert.InDelta(t, 20.0, metrics.DistanceM, 0.05)
	assert.Len(t, track, 2)
	assert.Equal(t, 10*time.Second, metrics.Duration)

	// Samples after finish are ignored.
	tr.Process(sampleAt(60, 10, start.Add(15*time.Second)))
	assert.InDelta(t, 20.0, tr.Metrics().DistanceM, 0.05)
}
