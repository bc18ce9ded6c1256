package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/voice"
	"github.com/billirae/billirae/workers"
)

// streamEvent is one message on the voice websocket, in either direction.
type streamEvent struct {
	Event string `json:"event"` // "start", "media", "stop", "reset"
	Media struct {
		Payload string `json:"payload"` // base64 audio
	} `json:"media,omitempty"`
	Start struct {
		Mode string `json:"mode"` // "native" or "remote"
	} `json:"start,omitempty"`

	// Server-to-client fields.
	Mode       string              `json:"mode,omitempty"`
	Transcript string              `json:"transcript,omitempty"`
	Draft      *model.InvoiceDraft `json:"draft,omitempty"`
	Code       string              `json:"code,omitempty"`
	Message    string              `json:"error,omitempty"`
}

// wsDevice presents browser-streamed audio chunks as a capture device. The
// websocket read loop feeds it; the capture core drains it.
type wsDevice struct {
	mu     sync.Mutex
	chunks chan model.AudioChunk
}

func (d *wsDevice) Open(_ context.Context) (<-chan model.AudioChunk, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan model.AudioChunk, 32)
	d.chunks = ch
	release := func() {
		d.mu.Lock()
		if d.chunks == ch {
			d.chunks = nil
		}
		d.mu.Unlock()
	}
	return ch, release, nil
}

// feed forwards one decoded chunk to the open capture session, dropping it
// when no session is active or the session cannot keep up.
func (d *wsDevice) feed(chunk model.AudioChunk) {
	d.mu.Lock()
	ch := d.chunks
	d.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- chunk:
	default:
	}
}

// streamSession is one authenticated voice websocket connection with its own
// capture session.
type streamSession struct {
	srv     *Server
	ws      *websocket.Conn
	userID  string
	device  *wsDevice
	session *voice.Session

	outbound chan streamEvent
	done     chan struct{}
}

// userSubmitter tags submitted recordings with the owning user so the
// result dispatcher can route them back.
type userSubmitter struct {
	worker *workers.TranscriptionWorker
	userID string
}

func (u userSubmitter) Available() bool {
	return u.worker.Available()
}

func (u userSubmitter) Submit(ctx context.Context, audio model.AudioChunk, filename string) error {
	return u.worker.SubmitFor(ctx, u.userID, audio, filename)
}

// handleStream upgrades to a websocket and runs one capture session per
// connection. The session token travels as a query parameter because
// browsers cannot set headers on websocket dials.
func (s *Server) handleStream() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		defer ws.Close()

		claims, err := s.auth.ParseToken(ws.Query("token"))
		if err != nil {
			_ = ws.WriteJSON(streamEvent{Event: "error", Code: "unauthorized", Message: "Authentifizierung erforderlich"})
			return
		}

		sess, err := s.newStreamSession(ws, claims.UserID)
		if err != nil {
			s.log.Error().Err(err).Msg("voice stream setup failed")
			_ = ws.WriteJSON(streamEvent{Event: "error", Code: string(voice.CodeInternal), Message: errMessage})
			return
		}
		sess.run()
	})
}

func (s *Server) newStreamSession(ws *websocket.Conn, userID string) (*streamSession, error) {
	sess := &streamSession{
		srv:      s,
		ws:       ws,
		userID:   userID,
		device:   &wsDevice{},
		outbound: make(chan streamEvent, 16),
		done:     make(chan struct{}),
	}

	recognizer, err := voice.NewRecognizer(s.dialer, sess.device, sess.onTranscript, sess.onEngineError, s.log)
	if err != nil {
		return nil, err
	}
	recorder, err := voice.NewRecorder(sess.device, userSubmitter{worker: s.worker, userID: userID}, s.log)
	if err != nil {
		return nil, err
	}
	session, err := voice.NewSession(recognizer, recorder, s.log)
	if err != nil {
		return nil, err
	}
	sess.session = session
	return sess, nil
}

func (sess *streamSession) onTranscript(transcript string) {
	sess.send(streamEvent{Event: "transcript", Transcript: transcript})
}

func (sess *streamSession) onEngineError(code voice.ErrorCode) {
	sess.send(streamEvent{Event: "error", Code: string(code), Message: voice.MessageFor(code)})
}

// send queues an outbound event, dropping it when the connection is gone.
func (sess *streamSession) send(ev streamEvent) {
	select {
	case sess.outbound <- ev:
	case <-sess.done:
	}
}

// run drives the connection: a writer goroutine serializes outbound events,
// a dispatcher forwards transcription results, and the read loop handles
// inbound capture events until the peer disconnects.
func (sess *streamSession) run() {
	results := sess.srv.subscribe(sess.userID)
	defer sess.srv.unsubscribe(sess.userID, results)
	defer close(sess.done)
	defer func() {
		_ = sess.session.Stop(context.Background())
	}()

	go sess.writeLoop()
	go sess.dispatchLoop(results)
	sess.readLoop()
}

func (sess *streamSession) writeLoop() {
	for {
		select {
		case <-sess.done:
			return
		case ev := <-sess.outbound:
			if err := sess.ws.WriteJSON(ev); err != nil {
				sess.srv.log.Debug().Err(err).Msg("voice stream write")
				return
			}
		}
	}
}

// dispatchLoop pushes the user's transcription results to the client.
func (sess *streamSession) dispatchLoop(results <-chan workers.Result) {
	for {
		select {
		case <-sess.done:
			return
		case res := <-results:
			if res.Err != nil {
				sess.send(streamEvent{Event: "error", Code: string(voice.CodeEngine), Message: voice.MessageFor(voice.CodeEngine)})
				continue
			}
			ev := streamEvent{Event: "draft", Transcript: res.Transcript, Draft: res.Draft}
			sess.send(ev)
		}
	}
}

func (sess *streamSession) readLoop() {
	ctx := context.Background()
	for {
		_, msg, err := sess.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.srv.log.Debug().Err(err).Msg("voice stream read")
			}
			return
		}

		var ev streamEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}

		switch ev.Event {
		case "start":
			sess.handleStart(ctx, ev.Start.Mode)

		case "media":
			chunk, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				continue
			}
			sess.device.feed(chunk)

		case "stop":
			sess.handleStop(ctx)

		case "reset":
			sess.session.Reset()

		default:
			sess.srv.log.Debug().Str("event", ev.Event).Msg("unknown voice stream event")
		}
	}
}

func (sess *streamSession) handleStart(ctx context.Context, mode string) {
	kind := voice.KindNative
	if mode == "remote" {
		kind = voice.KindRemote
	}
	if err := sess.session.Start(ctx, kind); err != nil {
		code := voice.CodeOf(err)
		sess.send(streamEvent{Event: "error", Code: string(code), Message: voice.MessageFor(code)})
		return
	}
	sess.send(streamEvent{Event: "started", Mode: sess.session.Active().String()})
}

// handleStop ends the active capture. On the native path the accumulated
// transcript is mapped to a draft right here; on the remote path the worker
// result arrives asynchronously through the dispatch loop.
func (sess *streamSession) handleStop(ctx context.Context) {
	active := sess.session.Active()
	if err := sess.session.Stop(ctx); err != nil {
		code := voice.CodeOf(err)
		sess.send(streamEvent{Event: "error", Code: string(code), Message: voice.MessageFor(code)})
		return
	}
	sess.send(streamEvent{Event: "stopped"})

	if active != voice.KindNative {
		return
	}
	transcript := sess.session.Transcript()
	if transcript == "" {
		return
	}
	d, err := sess.srv.parser.Parse(ctx, transcript)
	if err != nil {
		sess.send(streamEvent{Event: "error", Code: string(voice.CodeEngine), Message: voice.MessageFor(voice.CodeEngine)})
		return
	}
	if d == nil {
		return
	}
	sess.srv.controllerFor(sess.userID).SetDraft(*d)
	sess.send(streamEvent{Event: "draft", Transcript: transcript, Draft: d})
}
