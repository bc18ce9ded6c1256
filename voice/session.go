// Package voice is the capture core: a continuous speech-recognition path,
// a record-then-upload path, and a session manager that guarantees at most
// one of them is active at any time.
package voice

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Kind identifies which capture path a session uses.
type Kind int

const (
	KindNone Kind = iota
	KindNative
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindRemote:
		return "remote"
	default:
		return "none"
	}
}

// Capability says what this environment can do for voice capture.
type Capability int

const (
	Unavailable Capability = iota
	NativeEngine
	RemoteEngine
)

func (c Capability) String() string {
	switch c {
	case NativeEngine:
		return "native"
	case RemoteEngine:
		return "remote"
	default:
		return "unavailable"
	}
}

// Session serializes capture: at most one of the recognizer and the
// recorder is ever active, and starting one stops the other first.
type Session struct {
	recognizer *Recognizer
	recorder   *Recorder
	log        zerolog.Logger

	mu     sync.Mutex
	active Kind
}

// NewSession creates a session manager over both capture paths.
func NewSession(recognizer *Recognizer, recorder *Recorder, log zerolog.Logger) (*Session, error) {
	if recognizer == nil {
		return nil, errors.New("voice: recognizer is required")
	}
	if recorder == nil {
		return nil, errors.New("voice: recorder is required")
	}
	return &Session{recognizer: recognizer, recorder: recorder, log: log}, nil
}

// Capability prefers the native engine when both paths are configured.
func (s *Session) Capability() Capability {
	switch {
	case s.recognizer.Supported():
		return NativeEngine
	case s.recorder.Supported():
		return RemoteEngine
	default:
		return Unavailable
	}
}

// Start begins a session of the given kind, stopping any other active
// session first. A remote start on an unsupported capture path falls back
// to the native engine when that one is available.
func (s *Session) Start(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != KindNone && s.active != kind {
		if err := s.stopLocked(ctx); err != nil {
			s.log.Warn().Err(err).Msg("stopping previous session")
		}
	}

	switch kind {
	case KindNative:
		if !s.recognizer.Supported() {
			return NewError(CodeUnsupported, errors.New("native engine unavailable"))
		}
		if err := s.recognizer.Start(ctx); err != nil {
			return err
		}
	case KindRemote:
		if err := s.recorder.Start(ctx); err != nil {
			if CodeOf(err) == CodeUnsupported && s.recognizer.Supported() {
				s.log.Info().Msg("capture path unsupported, falling back to native engine")
				if err := s.recognizer.Start(ctx); err != nil {
					return err
				}
				s.active = KindNative
				return nil
			}
			return err
		}
	default:
		return NewError(CodeInternal, errors.New("unknown session kind"))
	}

	s.active = kind
	return nil
}

// Stop ends whichever session is active. Stopping with nothing active is a
// no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Session) stopLocked(ctx context.Context) error {
	kind := s.active
	s.active = KindNone
	switch kind {
	case KindNative:
		return s.recognizer.Stop()
	case KindRemote:
		return s.recorder.Stop(ctx)
	}
	return nil
}

// Reset clears the accumulated transcript without stopping.
func (s *Session) Reset() {
	s.recognizer.Reset()
}

// Transcript returns the native path's accumulated transcript.
func (s *Session) Transcript() string {
	return s.recognizer.Transcript()
}

// Active returns the currently active kind. An engine-side termination of
// the native path is observed lazily here.
func (s *Session) Active() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == KindNative && !s.recognizer.Listening() {
		s.active = KindNone
	}
	if s.active == KindRemote && !s.recorder.Recording() {
		s.active = KindNone
	}
	return s.active
}
