package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/queue"
)

// Submitter ships a finished recording for transcription and mapping. The
// result is delivered asynchronously by the implementation; Submit only
// fails when the recording could not be accepted at all.
type Submitter interface {
	Available() bool
	Submit(ctx context.Context, audio model.AudioChunk, filename string) error
}

const (
	// DefaultAcquireTimeout bounds device acquisition, so a hanging
	// acquisition fails distinctly from a denied permission.
	DefaultAcquireTimeout = 10 * time.Second

	// DefaultMinBytes is the smallest recording worth submitting; anything
	// below is discarded as silence.
	DefaultMinBytes = 16 * 1024

	// recordingFilename carries the container format hint for the
	// transcription backend.
	recordingFilename = "recording.webm"
)

// Recorder is the record-then-upload capture path: device chunks are
// buffered until Stop, then the concatenated recording is submitted for
// remote transcription. Chunk cadence is the device's to choose; browser
// clients slice at roughly three-second intervals, and the recorder only
// buffers whatever granularity arrives.
type Recorder struct {
	device         Device
	submit         Submitter
	log            zerolog.Logger
	acquireTimeout time.Duration
	minBytes       int

	mu        sync.Mutex
	recording bool
	chunks    *queue.Queue[model.AudioChunk]
	release   func()
	cancel    context.CancelFunc
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithAcquireTimeout overrides the device acquisition timeout.
func WithAcquireTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.acquireTimeout = d
		}
	}
}

// WithMinBytes overrides the minimum recording size.
func WithMinBytes(n int) RecorderOption {
	return func(r *Recorder) {
		if n >= 0 {
			r.minBytes = n
		}
	}
}

// NewRecorder creates a recorder.
func NewRecorder(device Device, submit Submitter, log zerolog.Logger, opts ...RecorderOption) (*Recorder, error) {
	if device == nil {
		return nil, errors.New("voice: device is required")
	}
	if submit == nil {
		return nil, errors.New("voice: submitter is required")
	}
	r := &Recorder{
		device:         device,
		submit:         submit,
		log:            log,
		acquireTimeout: DefaultAcquireTimeout,
		minBytes:       DefaultMinBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Supported reports whether a transcription backend is configured for
// finished recordings.
func (r *Recorder) Supported() bool {
	return r.submit.Available()
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start acquires the device within a bounded timeout and begins buffering
// chunks. Idempotent while recording.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return nil
	}
	if !r.submit.Available() {
		return NewError(CodeUnsupported, errors.New("no transcription backend configured"))
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancelAcquire()
	chunks, release, err := r.device.Open(acquireCtx)
	if err != nil {
		var ve *Error
		if errors.As(err, &ve) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return NewError(CodeAcquireTimeout, err)
		}
		return NewError(CodeInternal, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	q := queue.New[model.AudioChunk]()
	r.recording = true
	r.chunks = q
	r.release = release
	r.cancel = cancel

	go collect(runCtx, chunks, q)
	return nil
}

// collect buffers device chunks until the session ends.
func collect(ctx context.Context, chunks <-chan model.AudioChunk, q *queue.Queue[model.AudioChunk]) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if len(chunk) == 0 {
				continue
			}
			q.Enqueue(chunk)
		}
	}
}

// Stop finalizes the recording. The device is released first, on every
// path, before the recording is even looked at. Recordings below the
// minimum size are discarded with a too-short error and never submitted.
// Stopping while not recording is a no-op.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	r.recording = false
	cancel, release, q := r.cancel, r.release, r.chunks
	r.cancel, r.release, r.chunks = nil, nil, nil
	r.mu.Unlock()

	cancel()
	release()

	var recording []byte
	for _, chunk := range q.Drain() {
		recording = append(recording, chunk...)
	}
	r.log.Debug().Int("bytes", len(recording)).Msg("recording finalized")

	if len(recording) < r.minBytes {
		return NewError(CodeTooShort, fmt.Errorf("recorded %d bytes", len(recording)))
	}
	if err := r.submit.Submit(ctx, recording, recordingFilename); err != nil {
		return NewError(CodeInternal, err)
	}
	return nil
}
