package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/stt"
)

// flushTimeout bounds how long Stop waits for the engine's tail results
// before giving up on the flush.
const flushTimeout = 2 * time.Second

// TranscriptFunc receives the full accumulated transcript after each
// finalized speech segment.
type TranscriptFunc func(transcript string)

// ErrorFunc receives the error code when the engine terminates a session on
// its own. The session is already back in the not-listening state when the
// callback runs; the caller must restart explicitly, there is no retry.
type ErrorFunc func(code ErrorCode)

// Recognizer is the continuous speech-capture path: device audio is
// forwarded to a streaming engine and finalized segments are appended to an
// append-only transcript.
type Recognizer struct {
	dialer       stt.StreamDialer
	device       Device
	onTranscript TranscriptFunc
	onError      ErrorFunc
	log          zerolog.Logger

	mu         sync.Mutex
	listening  bool
	transcript string
	stream     stt.Stream
	release    func()
	cancel     context.CancelFunc
	drained    chan struct{}
}

// NewRecognizer creates a recognizer. The error callback is optional.
func NewRecognizer(dialer stt.StreamDialer, device Device, onTranscript TranscriptFunc, onError ErrorFunc, log zerolog.Logger) (*Recognizer, error) {
	if dialer == nil {
		return nil, errors.New("voice: stream dialer is required")
	}
	if device == nil {
		return nil, errors.New("voice: device is required")
	}
	if onTranscript == nil {
		return nil, errors.New("voice: transcript callback is required")
	}
	if onError == nil {
		onError = func(ErrorCode) {}
	}
	return &Recognizer{
		dialer:       dialer,
		device:       device,
		onTranscript: onTranscript,
		onError:      onError,
		log:          log,
	}, nil
}

// Supported reports whether the streaming engine is configured. Callers
// check this before offering the native path.
func (r *Recognizer) Supported() bool {
	return r.dialer.Available()
}

// Listening reports whether a session is active.
func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Transcript returns the accumulated transcript so far.
func (r *Recognizer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.TrimSpace(r.transcript)
}

// Start begins listening. It is idempotent while listening, and when the
// engine is unavailable it logs and returns nil rather than erroring.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listening {
		return nil
	}
	if !r.dialer.Available() {
		r.log.Warn().Msg("speech engine unavailable, start ignored")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	chunks, release, err := r.device.Open(runCtx)
	if err != nil {
		cancel()
		return err
	}
	stream, err := r.dialer.Dial(runCtx)
	if err != nil {
		release()
		cancel()
		return NewError(CodeEngine, err)
	}

	drained := make(chan struct{})
	r.listening = true
	r.stream = stream
	r.release = release
	r.cancel = cancel
	r.drained = drained

	go r.pump(runCtx, chunks, stream)
	go r.consume(stream, drained)
	return nil
}

// pump forwards device audio to the engine until the session ends.
func (r *Recognizer) pump(ctx context.Context, chunks <-chan model.AudioChunk, stream stt.Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if err := stream.Send(chunk); err != nil {
				r.fail(stream, CodeEngine, err)
				return
			}
		}
	}
}

// consume appends each finalized segment (with a trailing delimiter) to the
// transcript and notifies the caller with the full text so far. It keeps
// draining after Stop so the engine's pending partial result is flushed.
// The result channel closing while still listening means the engine ended
// the session itself.
func (r *Recognizer) consume(stream stt.Stream, drained chan struct{}) {
	defer close(drained)
	for res := range stream.Results() {
		if !res.Final || res.Text == "" {
			continue
		}
		r.mu.Lock()
		r.transcript += res.Text + " "
		full := strings.TrimSpace(r.transcript)
		r.mu.Unlock()
		r.onTranscript(full)
	}
	r.fail(stream, CodeEngine, errors.New("engine ended the session"))
}

// fail transitions back to not-listening from inside an engine goroutine
// and surfaces the error code. It does nothing after a regular Stop, and
// the stream identity check keeps a dying old session from tearing down a
// newer one.
func (r *Recognizer) fail(stream stt.Stream, code ErrorCode, err error) {
	r.mu.Lock()
	if !r.listening || r.stream != stream {
		r.mu.Unlock()
		return
	}
	r.listening = false
	cancel, release := r.cancel, r.release
	r.cancel, r.release, r.stream, r.drained = nil, nil, nil, nil
	r.mu.Unlock()

	cancel()
	release()
	_ = stream.Close()
	r.log.Error().Err(err).Str("code", string(code)).Msg("speech recognition ended")
	r.onError(code)
}

// Stop ends the session and blocks until the engine's pending results have
// been flushed into the transcript: closing the stream lets its result
// channel drain, and Stop waits for the consume loop to finish before
// returning, so Transcript() right after Stop already holds the tail
// segment. Stopping while not listening is a no-op.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return nil
	}
	r.listening = false
	cancel, release, stream, drained := r.cancel, r.release, r.stream, r.drained
	r.cancel, r.release, r.stream, r.drained = nil, nil, nil, nil
	r.mu.Unlock()

	cancel()
	release()
	if stream != nil {
		if err := stream.Close(); err != nil {
			r.log.Debug().Err(err).Msg("stream close")
		}
	}
	select {
	case <-drained:
	case <-time.After(flushTimeout):
		r.log.Warn().Msg("transcript flush timed out")
	}
	return nil
}

// Reset clears the accumulated transcript without stopping the session.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	r.transcript = ""
	r.mu.Unlock()
}
