package voice_test

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/stt"
	"github.com/billirae/billirae/voice"
)

// fakeDevice is a scriptable audio source.
type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	chunks   chan model.AudioChunk
	released int
	opened   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{chunks: make(chan model.AudioChunk, 16)}
}

func (d *fakeDevice) Open(context.Context) (<-chan model.AudioChunk, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, nil, d.openErr
	}
	d.opened++
	return d.chunks, func() {
		d.mu.Lock()
		d.released++
		d.mu.Unlock()
	}, nil
}

func (d *fakeDevice) releaseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// blockingDevice never finishes acquisition until its context expires.
type blockingDevice struct{}

func (blockingDevice) Open(ctx context.Context) (<-chan model.AudioChunk, func(), error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

// fakeStream is a scriptable transcription session.
type fakeStream struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	results chan stt.Result
	closed  bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{results: make(chan stt.Result, 16)}
}

func (s *fakeStream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeStream) Results() <-chan stt.Result { return s.results }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.results)
	}
	return nil
}

func (s *fakeStream) emit(text string, final bool) {
	s.results <- stt.Result{Text: text, Confidence: 0.9, Final: final}
}

// fakeDialer hands out a prepared stream.
type fakeDialer struct {
	available bool
	stream    *fakeStream
	dialErr   error
}

func (d *fakeDialer) Available() bool { return d.available }

func (d *fakeDialer) Dial(context.Context) (stt.Stream, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.stream, nil
}

// fakeSubmitter records submitted recordings.
type fakeSubmitter struct {
	mu        sync.Mutex
	available bool
	submitErr error
	audio     []byte
	filename  string
	calls     int
}

func (f *fakeSubmitter) Available() bool { return f.available }

func (f *fakeSubmitter) Submit(_ context.Context, audio model.AudioChunk, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.submitErr != nil {
		return f.submitErr
	}
	f.audio = audio
	f.filename = filename
	return nil
}

func (f *fakeSubmitter) submitted() ([]byte, string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audio, f.filename, f.calls
}

var errDenied = voice.NewError(voice.CodePermissionDenied, errors.New("denied"))
