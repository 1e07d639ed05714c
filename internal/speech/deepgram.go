package speech

import (
	"context"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/observability"
)

// DeepgramConfig holds the live transcription settings. Audio defaults to 16kHz mono
// linear PCM, the format the dictation page records.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	Encoding   string
	SampleRate int
}

// DeepgramTranscriber implements Transcriber using Deepgram's streaming API.
type DeepgramTranscriber struct {
	cfg    DeepgramConfig
	logger zerolog.Logger
}

// NewDeepgramTranscriber creates a transcriber.
func NewDeepgramTranscriber(cfg DeepgramConfig) *DeepgramTranscriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &DeepgramTranscriber{
		cfg:    cfg,
		logger: observability.Component("speech"),
	}
}

// callbackHandler embeds the default handler and overrides message and error delivery.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	stream *deepgramStream
}

func (h *callbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	h.stream.handleMessage(msg)
	return nil
}

func (h *callbackHandler) Error(resp *msginterfaces.ErrorResponse) error {
	h.stream.logger.Warn().Interface("response", resp).Msg("deepgram error")
	h.stream.markInactive()
	return nil
}

// Open connects a live transcription session.
func (d *DeepgramTranscriber) Open(ctx context.Context, onTranscript func(Transcript)) (Stream, error) {
	if d.cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       d.cfg.Language,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       d.cfg.Encoding,
		Channels:       1,
		SampleRate:     d.cfg.SampleRate,
	}

	s := newDeepgramStream(onTranscript, d.logger)
	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		stream:                 s,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.cfg.APIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, fmt.Errorf("failed to connect to deepgram")
	}

	s.mu.Lock()
	s.client = client
	s.active = true
	s.mu.Unlock()

	d.logger.Info().
		Str("model", d.cfg.Model).
		Str("language", d.cfg.Language).
		Msg("dictation session started")
	return s, nil
}

type deepgramStream struct {
	onTranscript func(Transcript)
	logger       zerolog.Logger

	mu     sync.RWMutex
	client *listenClient.WSCallback
	active bool
}

func newDeepgramStream(onTranscript func(Transcript), logger zerolog.Logger) *deepgramStream {
	if onTranscript == nil {
		onTranscript = func(Transcript) {}
	}
	return &deepgramStream{onTranscript: onTranscript, logger: logger}
}

func (s *deepgramStream) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}
		s.onTranscript(Transcript{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		})
	default:
		s.logger.Debug().Str("type", msg.Type).Msg("deepgram message ignored")
	}
}

func (s *deepgramStream) markInactive() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// SendAudio forwards an audio chunk.
func (s *deepgramStream) SendAudio(data []byte) error {
	s.mu.RLock()
	active, client := s.active, s.client
	s.mu.RUnlock()

	if !active || client == nil {
		return fmt.Errorf("dictation session is not active")
	}
	if _, err := client.Write(data); err != nil {
		return fmt.Errorf("failed to send audio to deepgram: %w", err)
	}
	return nil
}

// Close finishes the session. Safe to call more than once.
func (s *deepgramStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	s.client.Finish()
	s.client = nil
	s.active = false
	s.logger.Info().Msg("dictation session stopped")
	return nil
}
