package voice

import (
	"context"

	"github.com/billirae/billirae/model"
)

// Device abstracts a microphone-like audio source. The server never touches
// audio hardware itself; the browser streams captured chunks up and the
// transport layer presents them as a Device.
//
// Open acquires the source and returns a channel of raw audio chunks plus a
// release function. The channel is closed when the source ends on its own.
// The release function must be called exactly once on every exit path;
// calling it again is harmless.
//
// Acquisition failures are reported as *Error with one of
// CodePermissionDenied, CodeNoDevice, CodeDeviceBusy or CodeUnsupported.
type Device interface {
	Open(ctx context.Context) (<-chan model.AudioChunk, func(), error)
}
