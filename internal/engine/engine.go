package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/strideloop/runcore/internal/bus"
	"github.com/strideloop/runcore/internal/coach"
	"github.com/strideloop/runcore/internal/domain/shared"
	"github.com/strideloop/runcore/internal/geo"
	"github.com/strideloop/runcore/internal/history"
	"github.com/strideloop/runcore/internal/session"
	"github.com/strideloop/runcore/internal/voice"
	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"
)

// heartRateMaxAge is how long a heart-rate reading stays usable before the
// detectors treat the source as absent.
const heartRateMaxAge = 15 * time.Second

// Options carries the per-session collaborators of an engine. Player and
// Synthesizer default to NopPlayer and the HTTP client from configuration;
// History and Bus are optional and their absence only degrades coaching.
type Options struct {
	RunnerID    string
	Goal        session.Goal
	History     history.Repository
	Bus         *bus.Bus
	Player      voice.Player
	Synthesizer voice.SpeechSynthesizer
}

// Status is the displayable view of a running session, answered over the
// run loop so it is always internally consistent.
type Status struct {
	SessionID    shared.ID
	Goal         session.Goal
	Metrics      session.Metrics
	DisplayPos   *geo.Point
	Paused       bool
	Speaking     bool
	SpeakingText string
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdStop
	cmdStatus
)

type command struct {
	kind    commandKind
	statusC chan Status
	stopC   chan session.Summary
}

// Engine owns one run session end to end: it feeds position samples to the
// tracker, runs the evaluation cycle on a fixed tick and hands winning
// announcements to playback. All session state is confined to a single
// run-loop goroutine; the three async producers (position updates, the
// ticker, control commands) only communicate over channels.
type Engine struct {
	cfg    *config.Config
	logger *logger.Logger

	sessionID shared.ID
	runnerID  string
	goal      session.Goal

	tracker    *session.Tracker
	evaluator  *coach.Evaluator
	arbiter    *coach.Arbiter
	dispatcher *voice.Dispatcher
	historyRep history.Repository
	eventBus   *bus.Bus

	samples    chan session.RawSample
	heartRates chan int
	commands   chan command

	startedAt  time.Time
	aggregates *history.Aggregates
	lastHR     int
	lastHRAt   time.Time

	prevMetrics session.Metrics

	running chan struct{}
	done    chan struct{}
}

// New assembles an engine for a single session. Nothing is shared between
// engines; a new session gets a new engine.
func New(cfg *config.Config, opts Options, log *logger.Logger) *Engine {
	sessionID := shared.NewID()
	log = log.WithComponent("engine").WithSessionID(string(sessionID))

	player := opts.Player
	if player == nil {
		player = voice.NopPlayer{}
	}
	synth := opts.Synthesizer
	if synth == nil {
		synth = voice.NewHTTPSynthesizer(cfg.Voice, log)
	}

	dispatcher := voice.NewDispatcher(cfg.Voice, synth, player, log)

	evalCfg := coach.DefaultEvaluatorConfig()
	evalCfg.MinHistoryRuns = cfg.Coach.MinHistoryRuns

	return &Engine{
		cfg:        cfg,
		logger:     log,
		sessionID:  sessionID,
		runnerID:   opts.RunnerID,
		goal:       opts.Goal,
		evaluator:  coach.NewEvaluator(evalCfg, log),
		arbiter:    coach.NewArbiter(cfg.Coach, dispatcher, log),
		dispatcher: dispatcher,
		historyRep: opts.History,
		eventBus:   opts.Bus,
		samples:    make(chan session.RawSample, cfg.Engine.SampleBuffer),
		heartRates: make(chan int, 16),
		commands:   make(chan command),
		running:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SessionID returns the engine's session identifier.
func (e *Engine) SessionID() shared.ID {
	return e.sessionID
}

// Start begins the session: rate-limit state is reset, historical
// aggregates are loaded best-effort and the run loop starts. A history
// failure only disables the personal-record detector.
func (e *Engine) Start(ctx context.Context) error {
	select {
	case <-e.running:
		return shared.NewDomainError(shared.ErrCodeSessionAlreadyActive, "Run session already started")
	default:
	}

	now := time.Now()
	e.startedAt = now
	e.tracker = session.NewTracker(e.cfg.Filter, e.cfg.Engine.RunnerWeightKg, e.logger, now)
	e.arbiter.Reset()

	if e.historyRep != nil {
		agg, err := e.historyRep.Load(ctx, e.runnerID)
		if err != nil {
			e.logger.Warn("Failed to load runner history, record detection disabled", zap.Error(err))
		} else {
			e.aggregates = agg
		}
	}

	e.publish(ctx, &bus.SessionStartedEvent{
		SessionID: string(e.sessionID),
		RunnerID:  e.runnerID,
		Goal:      e.goal,
		StartedAt: now,
		Timestamp: now,
	})

	close(e.running)
	go e.run()

	e.logger.Info("Run session started",
		zap.String("goal", string(e.goal.Category)),
		zap.Float64("target_m", e.goal.TargetDistanceM))
	return nil
}

// SubmitPosition hands a raw sample to the run loop. Never blocks: when
// the buffer is full the sample is dropped and the next one re-anchors via
// the staleness rule.
func (e *Engine) SubmitPosition(s session.RawSample) {
	select {
	case e.samples <- s:
	case <-e.done:
	default:
		e.logger.Debug("Sample buffer full, dropping position update")
	}
}

// SubmitHeartRate hands a heart-rate reading to the run loop. Never blocks.
func (e *Engine) SubmitHeartRate(bpm int) {
	select {
	case e.heartRates <- bpm:
	case <-e.done:
	default:
	}
}

// Pause suspends distance accumulation and coaching evaluation.
func (e *Engine) Pause() {
	e.send(command{kind: cmdPause})
}

// Resume re-anchors the tracker and continues the session.
func (e *Engine) Resume() {
	e.send(command{kind: cmdResume})
}

// Status reports a consistent view of the session over the run loop.
func (e *Engine) Status() Status {
	statusC := make(chan Status, 1)
	if !e.send(command{kind: cmdStatus, statusC: statusC}) {
		return Status{SessionID: e.sessionID, Goal: e.goal}
	}
	return <-statusC
}

// Announce speaks ad-hoc text outside the evaluation cycle. Non-urgent
// announcements respect the speech cooldown and are rejected while the
// channel is busy; urgent ones preempt whatever is playing.
func (e *Engine) Announce(ctx context.Context, text string, urgent bool) error {
	if !urgent && !e.dispatcher.CanSpeakNow(0) {
		return shared.NewDomainError(shared.ErrCodeChannelBusy, "Speech channel is busy or cooling down")
	}
	e.dispatcher.Enqueue(voice.Item{
		Channel:  voice.ChannelSpeech,
		Text:     text,
		Priority: 100,
		Urgent:   urgent,
	})
	e.publish(ctx, &bus.NotificationSpokenEvent{
		SessionID: string(e.sessionID),
		Kind:      "announcement",
		Text:      text,
		Priority:  100,
		Timestamp: time.Now(),
	})
	return nil
}

// Stop ends the session: playback stops, in-flight synthesis is
// invalidated, the final summary is published and folded into history.
func (e *Engine) Stop(ctx context.Context) (session.Summary, error) {
	stopC := make(chan session.Summary, 1)
	if !e.send(command{kind: cmdStop, stopC: stopC}) {
		return session.Summary{}, shared.ErrSessionNotActive()
	}

	summary := <-stopC
	e.dispatcher.Close()

	e.publish(ctx, &bus.SessionCompletedEvent{
		SessionID: string(e.sessionID),
		RunnerID:  e.runnerID,
		Goal:      summary.Goal,
		Metrics:   summary.Metrics,
		Track:     summary.Track,
		StartedAt: summary.StartedAt,
		EndedAt:   summary.EndedAt,
		Timestamp: time.Now(),
	})

	if e.historyRep != nil {
		agg := e.aggregates
		if agg == nil {
			agg = &history.Aggregates{RunnerID: e.runnerID}
		}
		agg.RecordRun(summary.Metrics.DistanceM, summary.EndedAt)
		if err := e.historyRep.Save(ctx, e.runnerID, agg); err != nil {
			e.logger.Warn("Failed to save runner history", zap.Error(err))
		}
	}

	e.logger.Info("Run session stopped",
		zap.Float64("distance_m", summary.Metrics.DistanceM),
		zap.Duration("duration", summary.Metrics.Duration))
	return summary, nil
}

// send delivers a command to the run loop, reporting false once the loop
// has exited.
func (e *Engine) send(cmd command) bool {
	select {
	case <-e.running:
	default:
		return false
	}
	select {
	case e.commands <- cmd:
		return true
	case <-e.done:
		return false
	}
}

// run is the single goroutine that owns all mutable session state.
func (e *Engine) run() {
	ticker := time.NewTicker(e.cfg.Engine.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-e.samples:
			verdict := e.tracker.Process(s)
			e.logger.Debug("Position sample processed",
				zap.String("verdict", verdict.String()),
				zap.Float64("accuracy_m", s.AccuracyM))

		case bpm := <-e.heartRates:
			e.lastHR = bpm
			e.lastHRAt = time.Now()

		case now := <-ticker.C:
			e.evaluate(now)

		case cmd := <-e.commands:
			if e.handle(cmd) {
				close(e.done)
				return
			}
		}
	}
}

// handle executes one control command on the loop, reporting true on stop.
func (e *Engine) handle(cmd command) bool {
	now := time.Now()
	switch cmd.kind {
	case cmdPause:
		e.tracker.Pause(now)
		e.logger.Info("Run session paused")

	case cmdResume:
		e.tracker.Resume(now)
		e.logger.Info("Run session resumed")

	case cmdStatus:
		cmd.statusC <- e.status()

	case cmdStop:
		metrics, track := e.tracker.Finish(now)
		cmd.stopC <- session.Summary{
			SessionID: e.sessionID,
			StartedAt: e.startedAt,
			EndedAt:   now,
			Goal:      e.goal,
			Metrics:   metrics,
			Track:     track,
		}
		return true
	}
	return false
}

func (e *Engine) status() Status {
	st := Status{
		SessionID: e.sessionID,
		Goal:      e.goal,
		Metrics:   e.tracker.Metrics(),
		Paused:    e.tracker.Paused(),
		Speaking:  e.dispatcher.IsPlaying(),
	}
	if text, ok := e.dispatcher.NowSpeaking(); ok {
		st.SpeakingText = text
	}
	if pos, ok := e.tracker.DisplayPosition(); ok {
		projected := geo.Project(pos)
		st.DisplayPos = &projected
	}
	return st
}

// evaluate runs one coaching cycle: refresh duration-based metrics,
// publish the live update and let the evaluator and arbiter pick at most
// one announcement. Failures here never touch tracking state.
func (e *Engine) evaluate(now time.Time) {
	e.tracker.Tick(now)
	metrics := e.tracker.Metrics()

	if metrics != e.prevMetrics {
		changes, err := bus.MetricsChanges(e.prevMetrics, metrics)
		if err != nil {
			e.logger.Warn("Failed to diff metrics", zap.Error(err))
		}
		e.publish(context.Background(), &bus.MetricsUpdatedEvent{
			SessionID: string(e.sessionID),
			Metrics:   metrics,
			Timestamp: now,
			Changes:   changes,
		})
		e.prevMetrics = metrics
	}

	if e.tracker.Paused() {
		return
	}

	hr := e.lastHR
	if now.Sub(e.lastHRAt) > heartRateMaxAge {
		hr = 0
	}

	snap := coach.BuildSnapshot(now, metrics, e.goal, hr, e.aggregates)
	cand := e.evaluator.Evaluate(snap)
	if cand == nil {
		return
	}

	if reason := e.arbiter.Decide(cand, now); reason != coach.RejectNone {
		e.logger.Debug("Notification suppressed",
			zap.String("kind", cand.Kind.String()),
			zap.String("reason", string(reason)))
		return
	}
	e.arbiter.Accept(cand, now)

	e.dispatcher.Enqueue(voice.Item{
		Channel:  voice.ChannelSpeech,
		Text:     cand.Text,
		Priority: cand.Priority(),
	})
	e.publish(context.Background(), &bus.NotificationSpokenEvent{
		SessionID: string(e.sessionID),
		Kind:      cand.Kind.String(),
		Text:      cand.Text,
		Priority:  cand.Priority(),
		Timestamp: now,
	})
}

func (e *Engine) publish(ctx context.Context, event any) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(ctx, event)
}
