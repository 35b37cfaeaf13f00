package session

import (
	"time"

	"github.com/strideloop/runcore/internal/domain/shared"
	"github.com/strideloop/runcore/internal/geo"
)

// RawSample is a single positioning sample as delivered by the location
// source. Ephemeral; only accepted samples become waypoints.
type RawSample struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AccuracyM float64   `json:"accuracy_m"`
	SpeedMPS  float64   `json:"speed_mps,omitempty"` // 0 when the source provides none
	Time      time.Time `json:"time"`
}

// Point returns the sample's coordinate.
func (s RawSample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// Waypoint is an accepted, distance-contributing position sample.
type Waypoint struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time"`
}

// Point returns the waypoint's coordinate.
func (w Waypoint) Point() geo.Point {
	return geo.Point{Lat: w.Lat, Lon: w.Lon}
}

// Track is the ordered, append-only sequence of accepted waypoints.
// Length and cumulative distance never decrease during a session.
type Track struct {
	waypoints []Waypoint
}

// Append adds a waypoint to the end of the track.
func (t *Track) Append(w Waypoint) {
	t.waypoints = append(t.waypoints, w)
}

// Len returns the number of waypoints.
func (t *Track) Len() int {
	return len(t.waypoints)
}

// Last returns the most recent waypoint and whether one exists.
func (t *Track) Last() (Waypoint, bool) {
	if len(t.waypoints) == 0 {
		return Waypoint{}, false
	}
	return t.waypoints[len(t.waypoints)-1], true
}

// Waypoints returns a copy of the accepted waypoints.
func (t *Track) Waypoints() []Waypoint {
	out := make([]Waypoint, len(t.waypoints))
	copy(out, t.waypoints)
	return out
}

// Route returns the track as coordinates, for map rendering.
func (t *Track) Route() []geo.Point {
	out := make([]geo.Point, len(t.waypoints))
	for i, w := range t.waypoints {
		out[i] = w.Point()
	}
	return out
}

// Metrics is the live measurement of a run. Mutated only by the position
// filter (on acceptance) and the periodic timer (duration/pace refresh).
type Metrics struct {
	DistanceM    float64       `json:"distance_m"`
	Duration     time.Duration `json:"duration"`
	PaceMinPerKm float64       `json:"pace_min_per_km"` // 0 = undefined
	Calories     float64       `json:"calories"`
}

// DistanceKm returns the distance in kilometers.
func (m Metrics) DistanceKm() float64 {
	return m.DistanceM / 1000.0
}

// GoalCategory is the broad class of a declared session goal.
type GoalCategory string

const (
	GoalOpen         GoalCategory = "open"
	GoalFiveK        GoalCategory = "5k"
	GoalTenK         GoalCategory = "10k"
	GoalHalfMarathon GoalCategory = "half_marathon"
	GoalMarathon     GoalCategory = "marathon"
)

// String returns string representation
func (g GoalCategory) String() string {
	return string(g)
}

// IsValid checks if the goal category is known
func (g GoalCategory) IsValid() bool {
	switch g {
	case GoalOpen, GoalFiveK, GoalTenK, GoalHalfMarathon, GoalMarathon:
		return true
	}
	return false
}

// Goal is the declared target of a session.
type Goal struct {
	Category        GoalCategory `json:"category"`
	TargetDistanceM float64      `json:"target_distance_m"` // 0 for open runs
}

// NewGoal creates a validated goal. An open goal carries no target distance.
func NewGoal(category GoalCategory, targetDistanceM float64) (Goal, error) {
	if !category.IsValid() {
		return Goal{}, shared.NewDomainErrorf(shared.ErrCodeInvalidGoal, "Unknown goal category: %s", category)
	}
	if targetDistanceM < 0 {
		return Goal{}, shared.NewDomainError(shared.ErrCodeInvalidGoal, "Target distance cannot be negative")
	}
	if category == GoalOpen {
		targetDistanceM = 0
	} else if targetDistanceM == 0 {
		targetDistanceM = category.DefaultDistanceM()
	}
	return Goal{Category: category, TargetDistanceM: targetDistanceM}, nil
}

// DefaultDistanceM returns the canonical distance of a goal category.
func (g GoalCategory) DefaultDistanceM() float64 {
	switch g {
	case GoalFiveK:
		return 5000
	case GoalTenK:
		return 10000
	case GoalHalfMarathon:
		return 21097.5
	case GoalMarathon:
		return 42195
	default:
		return 0
	}
}

// Summary carries the final state of a finished session for persistence
// elsewhere. The engine emits it once, on completion.
type Summary struct {
	SessionID shared.ID  `json:"session_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	Goal      Goal       `json:"goal"`
	Metrics   Metrics    `json:"metrics"`
	Track     []Waypoint `json:"track"`
}
