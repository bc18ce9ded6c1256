package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func resultFrame(text string, final bool) []byte {
	return []byte(fmt.Sprintf(`{"is_final":%t,"channel":{"alternatives":[{"transcript":%q,"confidence":0.95}]}}`, final, text))
}

// The engine answers a close frame by flushing its pending final result
// before echoing the close. Close must keep reading until that echo so the
// tail final still reaches the result channel.
func TestDeepgramCloseFlushesTailFinals(t *testing.T) {
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.SetCloseHandler(func(code int, _ string) error {
			_ = conn.WriteMessage(gws.TextMessage, resultFrame("letzter Satz", true))
			return conn.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
		})
		_ = conn.WriteMessage(gws.TextMessage, resultFrame("erster Satz", true))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	d := NewDeepgramDialer("key", zerolog.Nop())
	d.endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	stream, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	finals := make(chan []string, 1)
	go func() {
		var texts []string
		for res := range stream.Results() {
			if res.Final {
				texts = append(texts, res.Text)
			}
		}
		finals <- texts
	}()

	if err := stream.Send([]byte("audio")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Logf("Close: %v", err)
	}

	select {
	case texts := <-finals:
		if len(texts) != 2 || texts[0] != "erster Satz" || texts[1] != "letzter Satz" {
			t.Fatalf("finals = %q, want both segments including the tail", texts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("result channel never closed")
	}
}
