package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/strideloop/runcore/internal/domain/shared"
	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"

	"go.uber.org/zap"
)

// SpeechSynthesizer turns resolved announcement text into audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesisRequest is the wire request of the TTS backend.
type SynthesisRequest struct {
	Text     string `json:"text" validate:"required,max=500"`
	Voice    string `json:"voice" validate:"required"`
	Language string `json:"language" validate:"required,bcp47_language_tag"`
}

// HTTPSynthesizer is a request/response TTS client with a bounded timeout
// and an outbound rate limit.
type HTTPSynthesizer struct {
	cfg      config.VoiceConfig
	client   *http.Client
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *logger.Logger
}

// NewHTTPSynthesizer creates a TTS client from voice configuration.
func NewHTTPSynthesizer(cfg config.VoiceConfig, log *logger.Logger) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestBurst),
		validate: validator.New(),
		logger:   log.WithComponent("synthesizer"),
	}
}

// Synthesize posts the text to the TTS backend and returns raw audio bytes.
// Responses below the configured payload floor are treated as truncated.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := SynthesisRequest{Text: text, Voice: s.cfg.Voice, Language: s.cfg.Language}
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeInvalidRequest, "Invalid synthesis request")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeSynthesisFailure, "Synthesis rate limit wait aborted")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeInvalidRequest, "Failed to encode synthesis request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeSynthesisFailure, "Failed to build synthesis request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, shared.WrapDomainError(err, shared.ErrCodeSynthesisTimeout, "Synthesis request timed out")
		}
		return nil, shared.WrapDomainError(err, shared.ErrCodeSynthesisFailure, "Synthesis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewDomainErrorf(shared.ErrCodeSynthesisFailure,
			"Synthesis backend returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeSynthesisFailure, "Failed to read synthesis response")
	}

	if len(audio) < s.cfg.MinPayloadBytes {
		return nil, shared.NewDomainErrorf(shared.ErrCodeEmptyAudio,
			"Synthesis payload too small: %d bytes", len(audio))
	}

	s.logger.Debug("Speech synthesized",
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("elapsed", time.Since(start)))
	return audio, nil
}
