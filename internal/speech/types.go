// Package speech provides dictation (speech-to-text) and playback (text-to-speech) for the
// translator. Both are optional and disabled when no API key is configured.
package speech

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrDisabled is returned when a capability has no credentials configured.
	ErrDisabled = errors.New("speech capability disabled")

	// ErrSynthesis wraps text-to-speech failures.
	ErrSynthesis = errors.New("speech synthesis failed")
)

// Transcript is a dictation result.
type Transcript struct {
	Text       string  `json:"text"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence"`
}

// Session joins the transcript segments of one listening session. Final segments
// accumulate; the latest interim segment is shown after them until it is replaced.
type Session struct {
	final   []string
	interim string
}

// Add records t and returns the cumulative transcript.
func (s *Session) Add(t Transcript) string {
	text := strings.TrimSpace(t.Text)
	if t.IsFinal {
		s.interim = ""
		if text != "" {
			s.final = append(s.final, text)
		}
	} else {
		s.interim = text
	}
	return s.Text()
}

// Text returns the cumulative transcript.
func (s *Session) Text() string {
	parts := s.final
	if s.interim != "" {
		parts = append(parts[:len(parts):len(parts)], s.interim)
	}
	return strings.Join(parts, " ")
}

// Transcriber opens streaming dictation sessions.
type Transcriber interface {
	// Open starts a session. onTranscript is called from the transport goroutine for each
	// non-empty interim and final result.
	Open(ctx context.Context, onTranscript func(Transcript)) (Stream, error)
}

// Stream is one dictation session.
type Stream interface {
	SendAudio(data []byte) error
	Close() error
}

// Audio is synthesized speech.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}
