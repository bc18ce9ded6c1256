// Package draft holds the invoice draft between voice capture and
// dispatch: the single editable line item, the committed invoice id, the
// PDF reference, and the transitions between them.
package draft

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/model"
)

// State is the draft lifecycle position.
type State int

const (
	StateEmpty State = iota
	StateDrafted
	StateCommitted
	StatePDFReady
	StateEmailSent
)

func (s State) String() string {
	switch s {
	case StateDrafted:
		return "drafted"
	case StateCommitted:
		return "committed"
	case StatePDFReady:
		return "pdf_ready"
	case StateEmailSent:
		return "email_sent"
	default:
		return "empty"
	}
}

// EmailRequest describes one invoice dispatch.
type EmailRequest struct {
	Recipient string   `json:"recipient_email" validate:"required,email"`
	Subject   string   `json:"subject,omitempty"`
	Message   string   `json:"message,omitempty"`
	CC        []string `json:"cc_emails,omitempty"`
}

// Services is the remote side of the controller: persistence, rendering and
// dispatch. The production implementation talks to the store, the PDF
// renderer and the mail sender; tests substitute fakes behind the same
// interface.
type Services interface {
	CreateInvoice(ctx context.Context, d model.InvoiceDraft) (string, error)
	GeneratePDF(ctx context.Context, invoiceID string) (string, error)
	SendEmail(ctx context.Context, invoiceID string, req EmailRequest) error
}

var (
	// ErrNoDraft is returned for operations that need a draft when none
	// exists.
	ErrNoDraft = errors.New("draft: no draft present")
	// ErrMissingRecipient is returned before any remote call when the
	// e-mail recipient is empty.
	ErrMissingRecipient = errors.New("draft: recipient address is required")
	// ErrInvalidState is returned when an operation does not apply to the
	// current state.
	ErrInvalidState = errors.New("draft: operation not valid in this state")
	// ErrBusy is returned while another action is still in flight.
	ErrBusy = errors.New("draft: another action is in flight")
)

// Controller owns one user's draft and mediates every transition. A failed
// remote call leaves the controller in the state it was in; editing after a
// commit clears the invoice id and PDF reference so no stale artifact can
// be shown.
type Controller struct {
	services Services
	log      zerolog.Logger

	mu        sync.Mutex
	busy      bool
	state     State
	draft     *model.InvoiceDraft
	invoiceID string
	pdfRef    string
}

// NewController creates a controller in the empty state.
func NewController(services Services, log zerolog.Logger) (*Controller, error) {
	if services == nil {
		return nil, errors.New("draft: services are required")
	}
	return &Controller{services: services, log: log}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the current draft, or nil when empty.
func (c *Controller) Draft() *model.InvoiceDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return nil
	}
	d := *c.draft
	return &d
}

// InvoiceID returns the committed invoice id, empty before commit.
func (c *Controller) InvoiceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invoiceID
}

// PDFRef returns the rendered PDF reference, empty before rendering.
func (c *Controller) PDFRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pdfRef
}

// SetDraft installs a freshly mapped draft, entering the drafted state and
// clearing any downstream artifacts of a previous draft.
func (c *Controller) SetDraft(d model.InvoiceDraft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = &d
	c.state = StateDrafted
	c.invoiceID = ""
	c.pdfRef = ""
}

// Edit atomically replaces the whole draft. Editing after a commit — in
// committed, pdf_ready or even email_sent — drops back to drafted and
// clears the invoice id and PDF reference, so downstream artifacts never
// outlive the draft they were made from. A sent e-mail stays sent; the
// edited draft has to walk the chain again.
func (c *Controller) Edit(d model.InvoiceDraft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateEmpty {
		return ErrNoDraft
	}
	c.draft = &d
	c.state = StateDrafted
	c.invoiceID = ""
	c.pdfRef = ""
	return nil
}

// Clear discards everything and returns to the empty state.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = nil
	c.state = StateEmpty
	c.invoiceID = ""
	c.pdfRef = ""
}

// Commit persists the draft as an invoice. On failure the controller stays
// in drafted and no id is stored.
func (c *Controller) Commit(ctx context.Context) error {
	draft, err := c.begin(StateDrafted)
	if err != nil {
		return err
	}
	defer c.settle()

	id, err := c.services.CreateInvoice(ctx, *draft)
	if err != nil {
		return errors.Wrap(err, "draft: commit")
	}

	c.mu.Lock()
	c.invoiceID = id
	c.state = StateCommitted
	c.mu.Unlock()
	c.log.Info().Str("invoice_id", id).Msg("draft committed")
	return nil
}

// GeneratePDF renders the committed invoice. On failure the controller
// stays in committed.
func (c *Controller) GeneratePDF(ctx context.Context) error {
	if _, err := c.begin(StateCommitted); err != nil {
		return err
	}
	defer c.settle()

	c.mu.Lock()
	id := c.invoiceID
	c.mu.Unlock()

	ref, err := c.services.GeneratePDF(ctx, id)
	if err != nil {
		return errors.Wrap(err, "draft: generate pdf")
	}

	c.mu.Lock()
	c.pdfRef = ref
	c.state = StatePDFReady
	c.mu.Unlock()
	return nil
}

// SendEmail dispatches the rendered invoice. The recipient is checked
// before any remote call; on failure the controller stays in pdf_ready and
// the user may retry with corrected input.
func (c *Controller) SendEmail(ctx context.Context, req EmailRequest) error {
	if strings.TrimSpace(req.Recipient) == "" {
		return ErrMissingRecipient
	}
	if _, err := c.begin(StatePDFReady); err != nil {
		return err
	}
	defer c.settle()

	c.mu.Lock()
	id := c.invoiceID
	c.mu.Unlock()

	if err := c.services.SendEmail(ctx, id, req); err != nil {
		return errors.Wrap(err, "draft: send email")
	}

	c.mu.Lock()
	c.state = StateEmailSent
	c.mu.Unlock()
	c.log.Info().Str("invoice_id", id).Str("recipient", req.Recipient).Msg("invoice sent")
	return nil
}

// begin guards a remote action: exactly one in flight, and only from the
// required state.
func (c *Controller) begin(required State) (*model.InvoiceDraft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, ErrBusy
	}
	if c.state == StateEmpty {
		return nil, ErrNoDraft
	}
	if c.state != required {
		return nil, ErrInvalidState
	}
	c.busy = true
	d := *c.draft
	return &d, nil
}

func (c *Controller) settle() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}
