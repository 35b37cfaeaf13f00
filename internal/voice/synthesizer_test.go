package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"
)

func synthConfig(baseURL string) config.VoiceConfig {
	cfg := testVoiceConfig
	cfg.BaseURL = baseURL
	return cfg
}

func TestHTTPSynthesizer_Success(t *testing.T) {
	var got SynthesisRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/synthesize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(bytes.Repeat([]byte{0xAB}, 2048))
	}))
	defer server.Close()

	s := NewHTTPSynthesizer(synthConfig(server.URL), logger.NewDefault())
	audio, err := s.Synthesize(context.Background(), "You've passed 5.0 km.")
	require.NoError(t, err)
	assert.Len(t, audio, 2048)
	assert.Equal(t, "You've passed 5.0 km.", got.Text)
	assert.Equal(t, "en-f1", got.Voice)
	assert.Equal(t, "en-US", got.Language)
}

func TestHTTPSynthesizer_RejectsTruncatedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x01, 0x02})
	}))
	defer server.Close()

	s := NewHTTPSynthesizer(synthConfig(server.URL), logger.NewDefault())
	_, err := s.Synthesize(context.Background(), "short payload")
	assert.Error(t, err)
}

func TestHTTPSynthesizer_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewHTTPSynthesizer(synthConfig(server.URL), logger.NewDefault())
	_, err := s.Synthesize(context.Background(), "backend down")
	assert.Error(t, err)
}

func TestHTTPSynthesizer_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	cfg := synthConfig(server.URL)
	cfg.RequestTimeout = 50 * time.Millisecond
	s := NewHTTPSynthesizer(cfg, logger.NewDefault())
	_, err := s.Synthesize(context.Background(), "slow backend")
	assert.Error(t, err)
}

func TestHTTPSynthesizer_RejectsInvalidRequest(t *testing.T) {
	s := NewHTTPSynthesizer(synthConfig("http://localhost:0"), logger.NewDefault())
	_, err := s.Synthesize(context.Background(), "")
	assert.Error(t, err, "empty text must fail validation before any request is sent")
}
