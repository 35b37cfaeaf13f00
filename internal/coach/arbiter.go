package coach

import (
	"time"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"

	"go.uber.org/zap"
)

// RejectReason explains why the arbiter declined a candidate.
type RejectReason string

const (
	RejectNone            RejectReason = ""
	RejectAlreadyFired    RejectReason = "already_fired"
	RejectGlobalCooldown  RejectReason = "global_cooldown"
	RejectChannelBusy     RejectReason = "channel_busy"
	RejectKindCooldown    RejectReason = "kind_cooldown"
	RejectWindowExhausted RejectReason = "window_exhausted"
)

// PlaybackStatus reports whether the speech channel is currently occupied.
type PlaybackStatus interface {
	Busy() bool
}

// Arbiter applies per-session rate limits to candidates. Gates run in a
// fixed order: once-per-run, global cooldown, channel busy, per-kind
// cooldown, sliding window. A rejected candidate consumes nothing.
// Not safe for concurrent use.
type Arbiter struct {
	cfg      config.CoachConfig
	logger   *logger.Logger
	playback PlaybackStatus

	lastSpeakAt time.Time
	spokenLog   []time.Time
	lastFired   map[EventKind]time.Time
	onceFired   map[EventKind]bool
}

// NewArbiter creates an arbiter with empty per-session state. playback may
// be nil, in which case the busy gate is skipped.
func NewArbiter(cfg config.CoachConfig, playback PlaybackStatus, log *logger.Logger) *Arbiter {
	return &Arbiter{
		cfg:       cfg,
		logger:    log.WithComponent("arbiter"),
		playback:  playback,
		lastFired: make(map[EventKind]time.Time),
		onceFired: make(map[EventKind]bool),
	}
}

// Decide checks every gate against the candidate without mutating state.
// Accept must be called separately for a candidate that is actually spoken.
func (a *Arbiter) Decide(cand *Candidate, now time.Time) RejectReason {
	meta := cand.Kind.Meta()

	if meta.Once && a.onceFired[cand.Kind] {
		return RejectAlreadyFired
	}

	if !a.lastSpeakAt.IsZero() && now.Sub(a.lastSpeakAt) < a.cfg.GlobalCooldown {
		return RejectGlobalCooldown
	}

	if a.playback != nil && a.playback.Busy() {
		return RejectChannelBusy
	}

	if meta.Cooldown > 0 {
		if last, ok := a.lastFired[cand.Kind]; ok && now.Sub(last) < meta.Cooldown {
			return RejectKindCooldown
		}
	}

	if a.windowCount(now) >= a.cfg.WindowMax {
		return RejectWindowExhausted
	}

	return RejectNone
}

// Accept records a spoken candidate in every gate's state.
func (a *Arbiter) Accept(cand *Candidate, now time.Time) {
	a.lastSpeakAt = now
	a.lastFired[cand.Kind] = now
	if cand.Kind.Meta().Once {
		a.onceFired[cand.Kind] = true
	}
	a.spokenLog = append(a.spokenLog, now)
	a.pruneWindow(now)

	a.logger.Debug("Notification accepted",
		zap.String("kind", cand.Kind.String()),
		zap.Int("window_count", len(a.spokenLog)))
}

// Reset clears all rate-limit state for a new session.
func (a *Arbiter) Reset() {
	a.lastSpeakAt = time.Time{}
	a.spokenLog = a.spokenLog[:0]
	a.lastFired = make(map[EventKind]time.Time)
	a.onceFired = make(map[EventKind]bool)
}

func (a *Arbiter) windowCount(now time.Time) int {
	a.pruneWindow(now)
	return len(a.spokenLog)
}

func (a *Arbiter) pruneWindow(now time.Time) {
	cutoff := now.Add(-a.cfg.Window)
	i := 0
	for i < len(a.spokenLog) && !a.spokenLog[i].After(cutoff) {
		i++
	}
	if i > 0 {
		a.spokenLog = append(a.spokenLog[:0], a.spokenLog[i:]...)
	}
}
