package voice_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/voice"
)

func newSession(t *testing.T, dialer *fakeDialer, submit *fakeSubmitter, device voice.Device) *voice.Session {
	t.Helper()
	r, err := voice.NewRecognizer(dialer, device, func(string) {}, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := voice.NewRecorder(device, submit, zerolog.Nop(), voice.WithMinBytes(1))
	if err != nil {
		t.Fatal(err)
	}
	s, err := voice.NewSession(r, rec, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSessionCapability(t *testing.T) {
	cases := []struct {
		native, remote bool
		want           voice.Capability
	}{
		{true, true, voice.NativeEngine},
		{true, false, voice.NativeEngine},
		{false, true, voice.RemoteEngine},
		{false, false, voice.Unavailable},
	}
	for _, c := range cases {
		s := newSession(t,
			&fakeDialer{available: c.native, stream: newFakeStream()},
			&fakeSubmitter{available: c.remote},
			newFakeDevice())
		if got := s.Capability(); got != c.want {
			t.Errorf("capability(native=%v, remote=%v) = %v, want %v", c.native, c.remote, got, c.want)
		}
	}
}

func TestSessionExclusivity(t *testing.T) {
	device := newFakeDevice()
	dialer := &fakeDialer{available: true, stream: newFakeStream()}
	submit := &fakeSubmitter{available: true}
	s := newSession(t, dialer, submit, device)
	ctx := context.Background()

	if err := s.Start(ctx, voice.KindNative); err != nil {
		t.Fatalf("start native: %v", err)
	}
	if got := s.Active(); got != voice.KindNative {
		t.Fatalf("active = %v", got)
	}

	// Starting the other path stops the first one.
	dialer.stream = newFakeStream()
	if err := s.Start(ctx, voice.KindRemote); err != nil {
		t.Fatalf("start remote: %v", err)
	}
	if got := s.Active(); got != voice.KindRemote {
		t.Fatalf("active = %v", got)
	}
	if got := device.releaseCount(); got != 1 {
		t.Fatalf("native session not released, count = %d", got)
	}

	if err := s.Stop(ctx); err != nil && voice.CodeOf(err) != voice.CodeTooShort {
		t.Fatalf("stop: %v", err)
	}
	if got := s.Active(); got != voice.KindNone {
		t.Fatalf("active after stop = %v", got)
	}
}

func TestSessionRemoteFallsBackToNative(t *testing.T) {
	device := newFakeDevice()
	dialer := &fakeDialer{available: true, stream: newFakeStream()}
	submit := &fakeSubmitter{available: false} // remote path unsupported
	s := newSession(t, dialer, submit, device)

	if err := s.Start(context.Background(), voice.KindRemote); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := s.Active(); got != voice.KindNative {
		t.Fatalf("active = %v, want native fallback", got)
	}
	_ = s.Stop(context.Background())
}

func TestSessionStopWithNothingActive(t *testing.T) {
	s := newSession(t,
		&fakeDialer{available: true, stream: newFakeStream()},
		&fakeSubmitter{available: true},
		newFakeDevice())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop on idle session: %v", err)
	}
}

func TestSessionRemoteRecordingFlow(t *testing.T) {
	device := newFakeDevice()
	submit := &fakeSubmitter{available: true}
	s := newSession(t, &fakeDialer{available: false}, submit, device)
	ctx := context.Background()

	if err := s.Start(ctx, voice.KindRemote); err != nil {
		t.Fatalf("start: %v", err)
	}
	device.chunks <- model.AudioChunk("gesprochene rechnung")
	time.Sleep(50 * time.Millisecond)

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, _, calls := submit.submitted(); calls != 1 {
		t.Fatalf("submit called %d times, want 1", calls)
	}
}
