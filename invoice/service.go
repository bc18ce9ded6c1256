// Package invoice implements the invoice business logic on top of the
// store: creation from voice drafts, totals, PDF rendering and dispatch.
package invoice

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/draft"
	"github.com/billirae/billirae/email"
	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/pdf"
	"github.com/billirae/billirae/store"
)

// ErrCustomerNotFound is returned when an invoice references a customer the
// user does not own.
var ErrCustomerNotFound = errors.New("invoice: customer not found")

// ErrNoPDF is returned when dispatch is requested before the PDF exists.
var ErrNoPDF = errors.New("invoice: no pdf rendered yet")

// dueAfter is the default payment term applied to voice drafts.
const dueAfter = 14 * 24 * time.Hour

// Service owns invoice lifecycle operations for all users.
type Service struct {
	store  *store.Store
	pdf    *pdf.Renderer
	mail   *email.Sender
	pdfDir string
	log    zerolog.Logger
}

// NewService creates the invoice service.
func NewService(st *store.Store, renderer *pdf.Renderer, mail *email.Sender, pdfDir string, log zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("invoice: store is required")
	}
	if renderer == nil {
		return nil, errors.New("invoice: renderer is required")
	}
	if mail == nil {
		return nil, errors.New("invoice: mail sender is required")
	}
	if pdfDir == "" {
		pdfDir = "pdfs"
	}
	return &Service{store: st, pdf: renderer, mail: mail, pdfDir: pdfDir, log: log}, nil
}

// computeTotals fills Subtotal, TaxAmount and Total from the items, rounded
// to cents.
func computeTotals(inv *model.Invoice) {
	var subtotal, tax float64
	for _, item := range inv.Items {
		net := float64(item.Quantity) * item.UnitPrice
		subtotal += net
		tax += net * item.TaxRate
	}
	inv.Subtotal = round2(subtotal)
	inv.TaxAmount = round2(tax)
	inv.Total = round2(subtotal + tax)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreateFromDraft persists a voice draft as a one-item invoice. The spoken
// customer name is resolved to an existing customer or a new bare record.
func (s *Service) CreateFromDraft(ctx context.Context, userID string, d model.InvoiceDraft) (*model.Invoice, error) {
	customer, err := s.store.FindOrCreateCustomer(ctx, userID, d.Client)
	if err != nil {
		return nil, err
	}

	invoiceDate := d.InvoiceDate
	if invoiceDate == "" {
		invoiceDate = time.Now().Format(model.DateLayout)
	}
	due, err := time.Parse(model.DateLayout, invoiceDate)
	if err != nil {
		return nil, errors.Wrap(err, "invoice: invalid invoice date")
	}

	inv := &model.Invoice{
		UserID:      userID,
		CustomerID:  customer.ID,
		InvoiceDate: invoiceDate,
		DueDate:     due.Add(dueAfter).Format(model.DateLayout),
		Currency:    d.Currency,
		Language:    d.Language,
		Items: []model.InvoiceItem{{
			Service:   d.Service,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
			TaxRate:   d.TaxRate,
		}},
	}
	if inv.Currency == "" {
		inv.Currency = "EUR"
	}
	if inv.Language == "" {
		inv.Language = "de"
	}
	computeTotals(inv)

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	s.log.Info().Str("invoice", inv.InvoiceNumber).Str("user_id", userID).Msg("invoice created from draft")
	return inv, nil
}

// Create persists a manually composed invoice. The customer must exist.
func (s *Service) Create(ctx context.Context, userID string, inv *model.Invoice) (*model.Invoice, error) {
	if _, err := s.store.CustomerByID(ctx, inv.CustomerID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	inv.UserID = userID
	if inv.Currency == "" {
		inv.Currency = "EUR"
	}
	if inv.Language == "" {
		inv.Language = "de"
	}
	computeTotals(inv)

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Update replaces an invoice's fields and items and recomputes the totals.
func (s *Service) Update(ctx context.Context, userID string, inv *model.Invoice) (*model.Invoice, error) {
	inv.UserID = userID
	computeTotals(inv)
	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return s.store.InvoiceByID(ctx, inv.ID, userID)
}

// Get fetches one invoice.
func (s *Service) Get(ctx context.Context, id, userID string) (*model.Invoice, error) {
	return s.store.InvoiceByID(ctx, id, userID)
}

// List returns a user's invoices, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID, status string) ([]model.Invoice, error) {
	return s.store.InvoicesByUser(ctx, userID, status)
}

// Delete removes an invoice.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.store.DeleteInvoice(ctx, id, userID)
}

// GeneratePDF renders an invoice, stores the file under the PDF directory
// and records its path. It returns the path.
func (s *Service) GeneratePDF(ctx context.Context, id, userID string) (string, error) {
	inv, err := s.store.InvoiceByID(ctx, id, userID)
	if err != nil {
		return "", err
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	customer, err := s.store.CustomerByID(ctx, inv.CustomerID, userID)
	if err != nil {
		return "", err
	}

	data, err := s.pdf.Render(*inv, *user, *customer)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.pdfDir, 0o755); err != nil {
		return "", errors.Wrap(err, "invoice: pdf dir")
	}
	path := filepath.Join(s.pdfDir, fmt.Sprintf("%s.pdf", inv.InvoiceNumber))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "invoice: write pdf")
	}

	if err := s.store.SetInvoicePDF(ctx, id, userID, path); err != nil {
		return "", err
	}
	return path, nil
}

// SendEmail mails the rendered invoice and marks it sent.
func (s *Service) SendEmail(ctx context.Context, id, userID string, req draft.EmailRequest) error {
	inv, err := s.store.InvoiceByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if inv.PDFPath == "" {
		return ErrNoPDF
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inv.PDFPath)
	if err != nil {
		return errors.Wrap(err, "invoice: read pdf")
	}

	msg := email.Message{
		Recipient: req.Recipient,
		CC:        req.CC,
		Subject:   req.Subject,
		Body:      req.Message,
	}
	if err := s.mail.SendInvoice(msg, *inv, *user, data); err != nil {
		return err
	}
	return s.store.SetInvoiceStatus(ctx, id, userID, model.StatusSent)
}

// MonthlyIncome aggregates the user's invoices per month.
func (s *Service) MonthlyIncome(ctx context.Context, userID string) ([]model.IncomeSummary, error) {
	return s.store.MonthlyIncome(ctx, userID)
}

// YearlyIncome aggregates the user's invoices per year.
func (s *Service) YearlyIncome(ctx context.Context, userID string) ([]model.IncomeSummary, error) {
	return s.store.YearlyIncome(ctx, userID)
}

// ForUser binds the service to one user so it satisfies draft.Services.
func (s *Service) ForUser(userID string) draft.Services {
	return userServices{svc: s, userID: userID}
}

type userServices struct {
	svc    *Service
	userID string
}

func (u userServices) CreateInvoice(ctx context.Context, d model.InvoiceDraft) (string, error) {
	inv, err := u.svc.CreateFromDraft(ctx, u.userID, d)
	if err != nil {
		return "", err
	}
	return inv.ID, nil
}

func (u userServices) GeneratePDF(ctx context.Context, invoiceID string) (string, error) {
	return u.svc.GeneratePDF(ctx, invoiceID, u.userID)
}

func (u userServices) SendEmail(ctx context.Context, invoiceID string, req draft.EmailRequest) error {
	return u.svc.SendEmail(ctx, invoiceID, u.userID, req)
}
