package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// stubCompletion spins up a chat-completion endpoint that always answers
// with the given content and records the received request.
func stubCompletion(t *testing.T, content string, gotReq *openai.ChatCompletionRequest) *InvoiceParser {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotReq != nil {
			if err := json.NewDecoder(r.Body).Decode(gotReq); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	p := NewInvoiceParserWithClient(openai.NewClientWithConfig(cfg), "gpt-4", zerolog.Nop())
	p.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestParseEmptyTranscriptIsNoop(t *testing.T) {
	// No server at all: an empty transcript must never trigger a call.
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = "http://127.0.0.1:1/v1"
	p := NewInvoiceParserWithClient(openai.NewClientWithConfig(cfg), "gpt-4", zerolog.Nop())

	for _, transcript := range []string{"", "   ", "\n\t"} {
		draft, err := p.Parse(context.Background(), transcript)
		if err != nil {
			t.Fatalf("Parse(%q): %v", transcript, err)
		}
		if draft != nil {
			t.Fatalf("Parse(%q) returned a draft", transcript)
		}
	}
}

func TestParseDictatedInvoice(t *testing.T) {
	var req openai.ChatCompletionRequest
	p := stubCompletion(t, `{
		"client": "Max Mustermann",
		"service": "Massage",
		"quantity": 3,
		"unit_price": 80,
		"tax_rate": 0.2,
		"invoice_date": "2026-08-28"
	}`, &req)

	draft, err := p.Parse(context.Background(), "Drei Massagen à 80 Euro für Max Mustermann, heute, inklusive Mehrwertsteuer.")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if draft == nil {
		t.Fatal("no draft")
	}

	if draft.Client != "Max Mustermann" {
		t.Errorf("client = %q", draft.Client)
	}
	if draft.Quantity != 3 {
		t.Errorf("quantity = %d", draft.Quantity)
	}
	if draft.UnitPrice != 80 {
		t.Errorf("unit price = %v", draft.UnitPrice)
	}
	if draft.TaxRate != 0.2 {
		t.Errorf("tax rate = %v", draft.TaxRate)
	}
	if draft.InvoiceDate != "2026-08-28" {
		t.Errorf("invoice date = %q", draft.InvoiceDate)
	}
	if draft.Currency != "EUR" || draft.Language != "de" {
		t.Errorf("defaults not applied: %q %q", draft.Currency, draft.Language)
	}

	// The prompt must carry today's date so "heute" can be resolved.
	if len(req.Messages) != 2 {
		t.Fatalf("sent %d messages", len(req.Messages))
	}
	if want := "Heute ist 2026-08-28."; !strings.Contains(req.Messages[0].Content, want) {
		t.Errorf("system prompt misses %q", want)
	}
}

func TestParseToleratesCodeFence(t *testing.T) {
	p := stubCompletion(t, "```json\n{\"client\":\"Erika Musterfrau\",\"service\":\"Beratung\",\"quantity\":1,\"unit_price\":120,\"tax_rate\":0.19}\n```", nil)

	draft, err := p.Parse(context.Background(), "Eine Beratung für Erika Musterfrau, 120 Euro netto, 19 Prozent.")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if draft.Client != "Erika Musterfrau" || draft.TaxRate != 0.19 {
		t.Errorf("draft = %+v", draft)
	}
	if draft.InvoiceDate != "2026-08-28" {
		t.Errorf("missing date must default to today, got %q", draft.InvoiceDate)
	}
}

func TestParseRejectsImplausibleData(t *testing.T) {
	p := stubCompletion(t, `{"client":"","service":"Massage","quantity":0,"unit_price":-5,"tax_rate":2}`, nil)
	if _, err := p.Parse(context.Background(), "unverständliches Gemurmel"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestParseRejectsNonJSON(t *testing.T) {
	p := stubCompletion(t, "Das konnte ich leider nicht verstehen.", nil)
	if _, err := p.Parse(context.Background(), "Hintergrundrauschen"); err == nil {
		t.Fatal("expected decode error")
	}
}
