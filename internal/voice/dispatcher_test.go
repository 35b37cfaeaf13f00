package voice

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"
)

var testVoiceConfig = config.VoiceConfig{
	Voice:           "en-f1",
	Language:        "en-US",
	RequestTimeout:  time.Second,
	RequestsPerSec:  10,
	RequestBurst:    5,
	QueueCapacity:   4,
	MinPayloadBytes: 16,
	SpeakCooldown:   5 * time.Second,
}

type playCall struct {
	payload Payload
	done    func(error)
}

type fakePlayer struct {
	plays chan playCall
	stops chan Channel
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{plays: make(chan playCall, 16), stops: make(chan Channel, 16)}
}

func (p *fakePlayer) Play(payload Payload, done func(error)) {
	p.plays <- playCall{payload: payload, done: done}
}

func (p *fakePlayer) Stop(ch Channel) {
	p.stops <- ch
}

func (p *fakePlayer) awaitPlay(t *testing.T) playCall {
	t.Helper()
	select {
	case call := <-p.plays:
		return call
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback to start")
		return playCall{}
	}
}

func (p *fakePlayer) assertNoPlay(t *testing.T) {
	t.Helper()
	select {
	case call := <-p.plays:
		t.Fatalf("unexpected playback of %q", call.payload.Text)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeSynth struct {
	block     chan struct{}
	failTexts map[string]bool
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failTexts[text] {
		return nil, errors.New("synthesis backend down")
	}
	return bytes.Repeat([]byte{0x01}, 1024), nil
}

func newTestDispatcher(t *testing.T, synth SpeechSynthesizer, player Player) *Dispatcher {
	t.Helper()
	d := NewDispatcher(testVoiceConfig, synth, player, logger.NewDefault())
	t.Cleanup(d.Close)
	return d
}

func speechItem(text string, priority int) Item {
	return Item{Channel: ChannelSpeech, Text: text, Priority: priority}
}

func TestDispatcher_PlaysSpeechInQueueOrder(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{}, player)

	d.Enqueue(speechItem("first", 70))
	call := player.awaitPlay(t)
	assert.Equal(t, "first", call.payload.Text)
	assert.NotEmpty(t, call.payload.Audio)
	assert.True(t, d.IsPlaying())
	text, ok := d.NowSpeaking()
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	// Queued behind the active item, in priority order.
	d.Enqueue(speechItem("low", 40))
	d.Enqueue(speechItem("high", 90))
	player.assertNoPlay(t)

	call.done(nil)
	assert.Equal(t, "high", player.awaitPlay(t).payload.Text)
}

func TestDispatcher_SynthesisFailureAdvancesQueue(t *testing.T) {
	player := newFakePlayer()
	synth := &fakeSynth{failTexts: map[string]bool{"broken": true}}
	d := newTestDispatcher(t, synth, player)

	d.Enqueue(speechItem("broken", 70))
	d.Enqueue(speechItem("working", 60))

	// The failed item is skipped silently and the next one plays.
	call := player.awaitPlay(t)
	assert.Equal(t, "working", call.payload.Text)
}

func TestDispatcher_StopDuringSynthesisDiscardsResult(t *testing.T) {
	player := newFakePlayer()
	synth := &fakeSynth{block: make(chan struct{})}
	d := newTestDispatcher(t, synth, player)

	d.Enqueue(speechItem("in-flight", 70))
	assert.True(t, d.IsPlaying())

	d.StopAll()
	close(synth.block)

	// The late synthesis result resolves after the stop: no audio plays
	// and the dispatcher stays idle.
	player.assertNoPlay(t)
	assert.False(t, d.IsPlaying())
}

func TestDispatcher_UrgentPreemptsAndClearsQueue(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{}, player)

	d.Enqueue(speechItem("active", 70))
	active := player.awaitPlay(t)
	d.Enqueue(speechItem("queued-a", 60))
	d.Enqueue(speechItem("queued-b", 50))

	d.Enqueue(Item{Channel: ChannelSpeech, Text: "urgent", Priority: 10, Urgent: true})

	// The active item is stopped and the urgent one plays next.
	select {
	case ch := <-player.stops:
		assert.Equal(t, ChannelSpeech, ch)
	case <-time.After(time.Second):
		t.Fatal("expected the active playback to be stopped")
	}
	assert.Equal(t, "urgent", player.awaitPlay(t).payload.Text)

	// The interrupted item's completion is stale and must not advance
	// anything.
	active.done(errors.New("interrupted"))
	player.assertNoPlay(t)
}

func TestDispatcher_ClipChannelSkipsSynthesis(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{block: make(chan struct{})}, player)

	d.Enqueue(Item{Channel: ChannelClip, Text: "countdown-3-2-1", Priority: 50})
	call := player.awaitPlay(t)
	assert.Equal(t, ChannelClip, call.payload.Channel)
	assert.Empty(t, call.payload.Audio)
}

func TestDispatcher_ChannelsAreIndependent(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{}, player)

	d.Enqueue(speechItem("speech", 70))
	d.Enqueue(Item{Channel: ChannelClip, Text: "chime", Priority: 50})

	// Both channels have an active item at once.
	texts := map[string]bool{}
	for i := 0; i < 2; i++ {
		texts[player.awaitPlay(t).payload.Text] = true
	}
	assert.True(t, texts["speech"])
	assert.True(t, texts["chime"])
}

func TestDispatcher_StopCurrentKeepsQueue(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{}, player)

	d.Enqueue(speechItem("active", 70))
	player.awaitPlay(t)
	d.Enqueue(speechItem("next", 60))

	d.StopCurrent(ChannelSpeech)
	assert.Equal(t, "next", player.awaitPlay(t).payload.Text)
}

func TestDispatcher_PlaybackFailureAdvancesQueue(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{}, player)

	d.Enqueue(speechItem("decode-error", 70))
	call := player.awaitPlay(t)
	d.Enqueue(speechItem("next", 60))

	call.done(errors.New("decode failed"))
	assert.Equal(t, "next", player.awaitPlay(t).payload.Text)
}

func TestDispatcher_CanSpeakNow(t *testing.T) {
	player := newFakePlayer()
	d := newTestDispatcher(t, &fakeSynth{}, player)

	base := time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)
	current := base
	d.now = func() time.Time { return current }

	require.True(t, d.CanSpeakNow(0), "idle dispatcher with no prior playback")

	d.Enqueue(speechItem("hello", 70))
	call := player.awaitPlay(t)
	assert.False(t, d.CanSpeakNow(0), "speech channel is occupied")

	call.done(nil)
	require.Eventually(t, func() bool { return !d.IsPlaying() }, time.Second, 5*time.Millisecond)

	// Idle again, but inside the cooldown since the last playback start.
	assert.False(t, d.CanSpeakNow(0))

	current = base.Add(testVoiceConfig.SpeakCooldown)
	assert.True(t, d.CanSpeakNow(0))

	// Caller override shortens the interval.
	current = base.Add(time.Second)
	assert.True(t, d.CanSpeakNow(500*time.Millisecond))
}
