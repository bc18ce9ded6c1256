// Package stt provides the speech-to-text backends: a streaming Deepgram
// client for live capture and a Whisper client for finished recordings.
package stt

import "context"

// Result is one transcription result from a streaming engine. Partial
// results carry Final=false and are superseded by the final segment.
type Result struct {
	Text       string
	Confidence float64
	Final      bool
}

// Stream is one live transcription session. Results is closed when the
// engine ends the session, normally or not.
type Stream interface {
	Send(chunk []byte) error
	Results() <-chan Result
	Close() error
}

// StreamDialer opens live transcription sessions. Available reports whether
// the backend is configured; callers must check it before dialing.
type StreamDialer interface {
	Available() bool
	Dial(ctx context.Context) (Stream, error)
}

// Transcriber turns a finished recording into text in one call.
type Transcriber interface {
	Available() bool
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
