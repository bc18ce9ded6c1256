// Package llm maps a finalized German transcript to a structured invoice
// draft. The remote model does all of the natural-language interpretation;
// no local parsing happens here.
package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/billirae/billirae/model"
)

const systemPrompt = `Du wandelst deutsche Sprachaufnahmen in strukturierte Rechnungsdaten um.
Antworte ausschließlich mit einem JSON-Objekt ohne weiteren Text, mit genau diesen Feldern:
client (Name des Kunden), service (erbrachte Leistung), quantity (ganze Zahl),
unit_price (Zahl, Nettopreis pro Einheit), tax_rate (Bruchteil zwischen 0 und 1,
z.B. 0.19 für 19% Mehrwertsteuer), invoice_date (Datum im Format JJJJ-MM-TT,
"heute" bedeutet das heutige Datum), currency (ISO-Code, Standard "EUR") und
language (Standard "de").`

// InvoiceParser asks a GPT model for the structured interpretation of one
// transcript.
type InvoiceParser struct {
	client   *openai.Client
	model    string
	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger
}

// NewInvoiceParser creates a parser using the given API key and chat model.
func NewInvoiceParser(apiKey, chatModel string, log zerolog.Logger) (*InvoiceParser, error) {
	if apiKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	return newParser(openai.NewClient(apiKey), chatModel, log), nil
}

// NewInvoiceParserWithClient creates a parser around an existing client.
// Used by tests to point at a stub server.
func NewInvoiceParserWithClient(client *openai.Client, chatModel string, log zerolog.Logger) *InvoiceParser {
	return newParser(client, chatModel, log)
}

func newParser(client *openai.Client, chatModel string, log zerolog.Logger) *InvoiceParser {
	if chatModel == "" {
		chatModel = openai.GPT4
	}
	return &InvoiceParser{
		client:   client,
		model:    chatModel,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

// Parse maps a transcript to an invoice draft. An empty transcript (after
// trimming) is a no-op and returns (nil, nil) without a remote call. Any
// remote or decoding failure returns an error and no draft.
func (p *InvoiceParser) Parse(ctx context.Context, transcript string) (*model.InvoiceDraft, error) {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return nil, nil
	}

	today := p.now().Format(model.DateLayout)
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.1,
		MaxTokens:   500,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt + "\nHeute ist " + today + "."},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "llm: parse voice input")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: empty completion")
	}

	draft, err := decodeDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	p.applyDefaults(draft)

	if err := p.validate.Struct(draft); err != nil {
		return nil, errors.Wrap(err, "llm: implausible invoice data")
	}

	p.log.Info().Str("client", draft.Client).Int("quantity", draft.Quantity).Msg("transcript mapped to draft")
	return draft, nil
}

// decodeDraft unmarshals the model output, tolerating a markdown code fence
// around the JSON object.
func decodeDraft(content string) (*model.InvoiceDraft, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var draft model.InvoiceDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, errors.Wrap(err, "llm: decode completion")
	}
	return &draft, nil
}

func (p *InvoiceParser) applyDefaults(draft *model.InvoiceDraft) {
	if draft.InvoiceDate == "" {
		draft.InvoiceDate = p.now().Format(model.DateLayout)
	}
	if draft.Currency == "" {
		draft.Currency = "EUR"
	}
	if draft.Language == "" {
		draft.Language = "de"
	}
}
