package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/observability"
)

// SynthConfig holds the text-to-speech settings.
type SynthConfig struct {
	APIKey   string
	Endpoint string
	VoiceID  string
	ModelID  string
	Timeout  time.Duration
}

// HTTPSynthesizer implements Synthesizer against a Cartesia-compatible bytes endpoint.
type HTTPSynthesizer struct {
	cfg        SynthConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

type synthRequest struct {
	ModelID      string      `json:"model_id"`
	Transcript   string      `json:"transcript"`
	Voice        synthVoice  `json:"voice"`
	OutputFormat synthFormat `json:"output_format"`
}

type synthVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type synthFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// NewHTTPSynthesizer creates a synthesizer. A nil client uses one bounded by cfg.Timeout.
func NewHTTPSynthesizer(cfg SynthConfig, client *http.Client) *HTTPSynthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPSynthesizer{
		cfg:        cfg,
		httpClient: client,
		logger:     observability.Component("speech"),
	}
}

// Synthesize returns WAV audio for text.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if s.cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	body, err := json.Marshal(synthRequest{
		ModelID:    s.cfg.ModelID,
		Transcript: text,
		Voice:      synthVoice{Mode: "id", ID: s.cfg.VoiceID},
		OutputFormat: synthFormat{
			Container:  "wav",
			Encoding:   "pcm_s16le",
			SampleRate: 24000,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrSynthesis, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSynthesis, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrSynthesis)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "audio/wav"
	}

	s.logger.Debug().Int("bytes", len(data)).Str("text", text).Msg("speech synthesized")
	return &Audio{Data: data, ContentType: contentType}, nil
}
