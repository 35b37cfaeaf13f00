package voice

import (
	"github.com/strideloop/runcore/pkg/logger"

	"go.uber.org/zap"
)

// Payload is the unit handed to an audio backend. Audio carries synthesized
// bytes for the speech channel; clip items are addressed by Text alone.
type Payload struct {
	Channel Channel
	Text    string
	Audio   []byte
}

// Player abstracts the host's audio output. Play must invoke done exactly
// once, with nil on success or the decode/device error otherwise, and must
// not call it synchronously from inside Play. Stop interrupts the channel's
// current playback, after which the pending done call reports an error.
type Player interface {
	Play(p Payload, done func(error))
	Stop(ch Channel)
}

// NopPlayer discards audio and completes instantly. Used when the host has
// not wired a real audio backend.
type NopPlayer struct{}

func (NopPlayer) Play(_ Payload, done func(error)) {
	go done(nil)
}

func (NopPlayer) Stop(Channel) {}

// LogPlayer writes the spoken text to the log instead of an audio device.
// The demo host uses it to make announcements visible on stdout.
type LogPlayer struct {
	logger *logger.Logger
}

func NewLogPlayer(log *logger.Logger) *LogPlayer {
	return &LogPlayer{logger: log.WithComponent("player")}
}

func (p *LogPlayer) Play(payload Payload, done func(error)) {
	p.logger.Info("Speaking",
		zap.String("channel", string(payload.Channel)),
		zap.String("text", payload.Text),
		zap.Int("audio_bytes", len(payload.Audio)))
	go done(nil)
}

func (p *LogPlayer) Stop(ch Channel) {
	p.logger.Debug("Playback stopped", zap.String("channel", string(ch)))
}
