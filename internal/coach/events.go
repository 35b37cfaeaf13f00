package coach

import (
	"time"
)

// EventKind identifies a coaching-worthy event. The set is closed; every
// kind carries static metadata in eventMeta.
type EventKind string

const (
	EventTimeMilestone     EventKind = "time_milestone"
	EventDistanceMilestone EventKind = "distance_milestone"
	EventHalfway           EventKind = "halfway"
	EventGoalCompleted     EventKind = "goal_completed"
	EventHRZoneEntry       EventKind = "hr_zone_entry"
	EventSustainedHighHR   EventKind = "sustained_high_hr"
	EventCalorieMilestone  EventKind = "calorie_milestone"
	EventPaceImproved      EventKind = "pace_improved"
	EventPaceDropped       EventKind = "pace_dropped"
	EventPersonalRecord    EventKind = "personal_record"
)

// String returns string representation
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the event kind is known
func (k EventKind) IsValid() bool {
	_, ok := eventMeta[k]
	return ok
}

// Meta is the static metadata attached to an event kind.
type Meta struct {
	Priority int           // arbitration rank, higher wins
	Once     bool          // at most one occurrence per session
	Cooldown time.Duration // per-kind re-fire cooldown, 0 for most milestones
}

// eventMeta is the constant lookup table for per-kind metadata.
// Priorities are static: simultaneous candidates are resolved by rank alone.
var eventMeta = map[EventKind]Meta{
	EventGoalCompleted:     {Priority: 95, Once: true},
	EventPersonalRecord:    {Priority: 90, Once: true},
	EventHalfway:           {Priority: 80, Once: true},
	EventDistanceMilestone: {Priority: 75},
	EventSustainedHighHR:   {Priority: 70, Cooldown: 60 * time.Second},
	EventHRZoneEntry:       {Priority: 60, Once: true},
	EventTimeMilestone:     {Priority: 55},
	EventCalorieMilestone:  {Priority: 50},
	EventPaceDropped:       {Priority: 45, Cooldown: 90 * time.Second},
	EventPaceImproved:      {Priority: 40, Cooldown: 90 * time.Second},
}

// Meta returns the static metadata for the kind.
func (k EventKind) Meta() Meta {
	return eventMeta[k]
}

// Priority returns the kind's static arbitration rank.
func (k EventKind) Priority() int {
	return eventMeta[k].Priority
}

// Candidate is a fully text-substituted coaching event produced by one
// detector during one evaluation cycle.
type Candidate struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Priority returns the candidate's static rank.
func (c *Candidate) Priority() int {
	return c.Kind.Priority()
}
