package stt

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// WhisperTranscriber transcribes finished recordings with OpenAI Whisper.
type WhisperTranscriber struct {
	client   *openai.Client
	language string
	log      zerolog.Logger
}

// NewWhisperTranscriber creates a transcriber for the given language code
// (e.g. "de"). An empty API key yields an unavailable transcriber.
func NewWhisperTranscriber(apiKey, language string, log zerolog.Logger) *WhisperTranscriber {
	t := &WhisperTranscriber{language: language, log: log}
	if apiKey != "" {
		t.client = openai.NewClient(apiKey)
	}
	return t
}

// NewWhisperTranscriberWithClient creates a transcriber around an existing
// client. Used by tests to point at a stub server.
func NewWhisperTranscriberWithClient(client *openai.Client, language string, log zerolog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{client: client, language: language, log: log}
}

// Available reports whether the transcriber is configured.
func (t *WhisperTranscriber) Available() bool {
	return t.client != nil
}

// Transcribe sends the recording for transcription and returns the plain
// transcript text. The filename only carries the container format hint.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if !t.Available() {
		return "", errors.New("whisper: no api key configured")
	}
	if len(audio) == 0 {
		return "", errors.New("whisper: empty recording")
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
		Language: t.language,
	})
	if err != nil {
		return "", errors.Wrap(err, "whisper: transcribe")
	}

	text := strings.TrimSpace(resp.Text)
	t.log.Debug().Int("audio_bytes", len(audio)).Int("transcript_len", len(text)).Msg("recording transcribed")
	return text, nil
}
