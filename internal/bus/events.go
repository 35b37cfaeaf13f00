package bus

import (
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/strideloop/runcore/internal/session"
)

// SessionStartedEvent represents a domain event when a run session starts
type SessionStartedEvent struct {
	SessionID string       `json:"session_id"`
	RunnerID  string       `json:"runner_id"`
	Goal      session.Goal `json:"goal"`
	StartedAt time.Time    `json:"started_at"`
	Timestamp time.Time    `json:"timestamp"`
}

// MetricsUpdatedEvent represents a domain event carrying live metrics for
// display. Changes holds only the fields that differ from the previous
// update.
type MetricsUpdatedEvent struct {
	SessionID string                 `json:"session_id"`
	Metrics   session.Metrics        `json:"metrics"`
	Timestamp time.Time              `json:"timestamp"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
}

// NotificationSpokenEvent represents a domain event when an announcement is
// handed to playback. UI consumers render the text as the speaking bubble.
type NotificationSpokenEvent struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Priority  int       `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionCompletedEvent represents a domain event when a run session
// finishes, carrying the final metrics and the filtered track for
// persistence elsewhere.
type SessionCompletedEvent struct {
	SessionID string             `json:"session_id"`
	RunnerID  string             `json:"runner_id"`
	Goal      session.Goal       `json:"goal"`
	Metrics   session.Metrics    `json:"metrics"`
	Track     []session.Waypoint `json:"track"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at"`
	Timestamp time.Time          `json:"timestamp"`
}

// MetricsChanges computes the merge-patch diff between two metric
// snapshots as a field map.
func MetricsChanges(previous, current session.Metrics) (map[string]interface{}, error) {
	previousJSON, err := json.Marshal(previous)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal previous metrics: %w", err)
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal current metrics: %w", err)
	}

	mergePatch, err := jsonpatch.CreateMergePatch(previousJSON, currentJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}

	var changes map[string]interface{}
	if err := json.Unmarshal(mergePatch, &changes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merge patch: %w", err)
	}

	return changes, nil
}
