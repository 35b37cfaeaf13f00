package voice

import (
	"context"
	"sync"
	"time"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"

	"go.uber.org/zap"
)

// channelState tracks one audio channel: its queue, the active item and the
// generation counter that invalidates in-flight work after a stop.
type channelState struct {
	queue   *playQueue
	active  *Item
	playing bool
	gen     uint64
}

// Dispatcher feeds two independent audio channels from priority queues.
// At most one item is active per channel. Speech items pass through the
// synthesizer before playback; completions of either stage advance the
// queue regardless of outcome. Safe for concurrent use: playback and
// synthesis completions arrive on their own goroutines.
type Dispatcher struct {
	mu     sync.Mutex
	cfg    config.VoiceConfig
	logger *logger.Logger
	synth  SpeechSynthesizer
	player Player

	channels map[Channel]*channelState

	lastStartAt time.Time
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher with empty queues for both channels.
func NewDispatcher(cfg config.VoiceConfig, synth SpeechSynthesizer, player Player, log *logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:    cfg,
		logger: log.WithComponent("dispatcher"),
		synth:  synth,
		player: player,
		channels: map[Channel]*channelState{
			ChannelClip:   {queue: newPlayQueue(cfg.QueueCapacity)},
			ChannelSpeech: {queue: newPlayQueue(cfg.QueueCapacity)},
		},
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue queues an item on its channel. An urgent item clears the queue,
// interrupts the active item and plays next.
func (d *Dispatcher) Enqueue(item Item) {
	d.mu.Lock()
	ch := d.channels[item.Channel]
	if ch == nil {
		d.mu.Unlock()
		d.logger.Warn("Unknown playback channel", zap.String("channel", string(item.Channel)))
		return
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = d.now()
	}

	if item.Urgent {
		ch.queue.clear()
		ch.queue.pushFront(item)
		d.interruptLocked(item.Channel, ch)
	} else if !ch.queue.push(item) {
		d.logger.Debug("Playback item dropped on overflow",
			zap.String("channel", string(item.Channel)),
			zap.String("text", item.Text))
	}
	d.advanceLocked(item.Channel, ch)
	d.mu.Unlock()
}

// IsPlaying reports whether any channel has an active item.
func (d *Dispatcher) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.channels {
		if ch.active != nil {
			return true
		}
	}
	return false
}

// Busy reports whether the speech channel is occupied. Satisfies the
// arbiter's playback-status gate.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[ChannelSpeech].active != nil
}

// NowSpeaking returns the text of the speech item currently being played,
// for UI display. ok is false while the channel is idle or still
// synthesizing.
func (d *Dispatcher) NowSpeaking() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.channels[ChannelSpeech]
	if ch.active == nil || !ch.playing {
		return "", false
	}
	return ch.active.Text, true
}

// CanSpeakNow reports whether a direct announcement may start: the speech
// channel must be idle and the cooldown since the last playback start must
// have lapsed. A non-positive minInterval falls back to the configured
// cooldown.
func (d *Dispatcher) CanSpeakNow(minInterval time.Duration) bool {
	if minInterval <= 0 {
		minInterval = d.cfg.SpeakCooldown
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.channels[ChannelSpeech].active != nil {
		return false
	}
	return d.lastStartAt.IsZero() || d.now().Sub(d.lastStartAt) >= minInterval
}

// StopCurrent interrupts the channel's active item, leaving the queue
// intact. The next queued item starts immediately.
func (d *Dispatcher) StopCurrent(channel Channel) {
	d.mu.Lock()
	ch := d.channels[channel]
	if ch != nil {
		d.interruptLocked(channel, ch)
		d.advanceLocked(channel, ch)
	}
	d.mu.Unlock()
}

// StopAll interrupts every channel and clears every queue. Any in-flight
// synthesis result arriving afterwards is discarded.
func (d *Dispatcher) StopAll() {
	d.mu.Lock()
	for name, ch := range d.channels {
		ch.queue.clear()
		d.interruptLocked(name, ch)
	}
	d.mu.Unlock()
}

// Close stops all playback and releases the dispatcher's context.
func (d *Dispatcher) Close() {
	d.StopAll()
	d.cancel()
}

// interruptLocked invalidates the active item and in-flight work by
// bumping the channel generation.
func (d *Dispatcher) interruptLocked(name Channel, ch *channelState) {
	ch.gen++
	if ch.active == nil {
		return
	}
	wasPlaying := ch.playing
	ch.active = nil
	ch.playing = false
	if wasPlaying {
		d.player.Stop(name)
	}
}

// advanceLocked starts the next queued item if the channel is idle.
func (d *Dispatcher) advanceLocked(name Channel, ch *channelState) {
	if ch.active != nil {
		return
	}
	item, ok := ch.queue.pop()
	if !ok {
		return
	}
	ch.active = &item
	gen := ch.gen

	if name == ChannelSpeech && d.synth != nil {
		go d.synthesize(name, item, gen)
		return
	}
	d.startPlaybackLocked(name, ch, Payload{Channel: name, Text: item.Text}, gen)
}

// synthesize runs the TTS request off the dispatcher lock and feeds the
// result back through the generation check.
func (d *Dispatcher) synthesize(name Channel, item Item, gen uint64) {
	audio, err := d.synth.Synthesize(d.ctx, item.Text)

	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.channels[name]
	if ch.gen != gen || ch.active == nil {
		// Stopped while the request was in flight.
		return
	}
	if err != nil {
		d.logger.Warn("Speech synthesis failed, advancing queue",
			zap.String("text", item.Text),
			zap.Error(err))
		ch.active = nil
		d.advanceLocked(name, ch)
		return
	}
	d.startPlaybackLocked(name, ch, Payload{Channel: name, Text: item.Text, Audio: audio}, gen)
}

func (d *Dispatcher) startPlaybackLocked(name Channel, ch *channelState, payload Payload, gen uint64) {
	ch.playing = true
	d.lastStartAt = d.now()
	d.player.Play(payload, func(err error) {
		d.onPlaybackDone(name, gen, err)
	})
}

func (d *Dispatcher) onPlaybackDone(name Channel, gen uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.channels[name]
	if ch.gen != gen {
		return
	}
	if err != nil {
		d.logger.Warn("Playback failed, advancing queue",
			zap.String("channel", string(name)),
			zap.Error(err))
	}
	ch.active = nil
	ch.playing = false
	d.advanceLocked(name, ch)
}
