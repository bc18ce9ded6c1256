package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// closeGrace bounds how long Close waits for tail results between the close
// frame and the server's close echo.
const closeGrace = 2 * time.Second

// deepgramURL is the live-listening endpoint tuned for dictated German
// invoice text.
const deepgramURL = "wss://api.deepgram.com/v1/listen?model=nova-2&language=de&punctuate=true&smart_format=true&interim_results=true&vad_events=true"

// DeepgramDialer opens streaming transcription sessions against Deepgram.
type DeepgramDialer struct {
	apiKey   string
	endpoint string
	log      zerolog.Logger
}

// NewDeepgramDialer creates a dialer. An empty API key is allowed; the
// dialer then reports itself as unavailable and the caller degrades to the
// recording path.
func NewDeepgramDialer(apiKey string, log zerolog.Logger) *DeepgramDialer {
	return &DeepgramDialer{
		apiKey:   apiKey,
		endpoint: deepgramURL,
		log:      log,
	}
}

// Available reports whether the dialer is configured with an API key.
func (d *DeepgramDialer) Available() bool {
	return d.apiKey != ""
}

// Dial opens a websocket session and starts reading results.
func (d *DeepgramDialer) Dial(ctx context.Context) (Stream, error) {
	if !d.Available() {
		return nil, errors.New("deepgram: no api key configured")
	}

	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", d.apiKey)},
	}
	conn, _, err := gws.DefaultDialer.DialContext(ctx, d.endpoint, header)
	if err != nil {
		return nil, errors.Wrap(err, "deepgram: dial")
	}

	s := &deepgramStream{
		conn:     conn,
		results:  make(chan Result, 8),
		readDone: make(chan struct{}),
		log:      d.log,
	}
	go s.readLoop()
	return s, nil
}

type deepgramStream struct {
	conn     *gws.Conn
	results  chan Result
	readDone chan struct{}
	log      zerolog.Logger
}

// transcriptionMessage is the wire shape of a Deepgram result frame.
type transcriptionMessage struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Send forwards one chunk of raw audio to the engine.
func (s *deepgramStream) Send(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if err := s.conn.WriteMessage(gws.BinaryMessage, chunk); err != nil {
		return errors.Wrap(err, "deepgram: write audio")
	}
	return nil
}

// Results returns the result channel. It is closed when the session ends.
func (s *deepgramStream) Results() <-chan Result {
	return s.results
}

// readLoop parses result frames until the connection drops, then closes the
// result channel so the caller observes the terminal state.
func (s *deepgramStream) readLoop() {
	defer close(s.readDone)
	defer close(s.results)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug().Err(err).Msg("deepgram read ended")
			return
		}

		var msg transcriptionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.log.Warn().Err(err).Msg("deepgram: unparseable frame")
			continue
		}
		if len(msg.Channel.Alternatives) == 0 {
			continue
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		s.results <- Result{
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
			Final:      msg.IsFinal,
		}
	}
}

// Close sends the close frame, then keeps the read loop alive until the
// server's close echo so the tail finals the engine flushes in response
// still reach the result channel. The wait is bounded by a read deadline.
func (s *deepgramStream) Close() error {
	if err := s.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "closing connection")); err != nil {
		return s.conn.Close()
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(closeGrace))
	select {
	case <-s.readDone:
	case <-time.After(closeGrace + time.Second):
		s.log.Warn().Msg("deepgram close echo never arrived")
	}
	return s.conn.Close()
}
