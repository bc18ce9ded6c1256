package invoice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/draft"
	"github.com/billirae/billirae/email"
	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/pdf"
	"github.com/billirae/billirae/store"
)

func emailRequest(recipient string) draft.EmailRequest {
	return draft.EmailRequest{Recipient: recipient}
}

func newTestService(t *testing.T) (*Service, *store.Store, *model.User) {
	t.Helper()
	st, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	// SMTP deliberately unconfigured; dispatch tests assert the failure.
	mail := email.NewSender("", 0, "", "", "noreply@billirae.com", zerolog.Nop())
	svc, err := NewService(st, pdf.NewRenderer(zerolog.Nop()), mail, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	user := &model.User{
		Email:        "anna@example.com",
		PasswordHash: "x",
		FirstName:    "Anna",
		LastName:     "Beispiel",
		Settings:     model.UserSettings{InvoicePrefix: "R-"},
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	return svc, st, user
}

func TestComputeTotals(t *testing.T) {
	inv := &model.Invoice{
		Items: []model.InvoiceItem{
			{Service: "Massage", Quantity: 3, UnitPrice: 80, TaxRate: 0.2},
			{Service: "Anfahrt", Quantity: 1, UnitPrice: 19.99, TaxRate: 0.19},
		},
	}
	computeTotals(inv)
	if inv.Subtotal != 259.99 {
		t.Errorf("subtotal = %v", inv.Subtotal)
	}
	if inv.TaxAmount != 51.80 {
		t.Errorf("tax = %v", inv.TaxAmount)
	}
	if inv.Total != 311.79 {
		t.Errorf("total = %v", inv.Total)
	}
}

func TestCreateFromDraft(t *testing.T) {
	svc, st, user := newTestService(t)
	ctx := context.Background()

	inv, err := svc.CreateFromDraft(ctx, user.ID, model.InvoiceDraft{
		Client:      "Max Mustermann",
		Service:     "Massage",
		Quantity:    3,
		UnitPrice:   80,
		TaxRate:     0.2,
		InvoiceDate: "2026-08-28",
	})
	if err != nil {
		t.Fatalf("CreateFromDraft: %v", err)
	}

	if inv.InvoiceNumber != "R-0001" {
		t.Errorf("number = %q", inv.InvoiceNumber)
	}
	if inv.Total != 288 {
		t.Errorf("total = %v", inv.Total)
	}
	if inv.DueDate != "2026-09-11" {
		t.Errorf("due date = %q", inv.DueDate)
	}
	if inv.Currency != "EUR" || inv.Language != "de" {
		t.Errorf("defaults missing: %q %q", inv.Currency, inv.Language)
	}

	customers, err := st.CustomersByUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(customers) != 1 || customers[0].Name != "Max Mustermann" {
		t.Fatalf("customers = %+v", customers)
	}

	// A second draft for the same name reuses the customer.
	if _, err := svc.CreateFromDraft(ctx, user.ID, model.InvoiceDraft{
		Client: "Max Mustermann", Service: "Beratung", Quantity: 1, UnitPrice: 50, TaxRate: 0.19,
	}); err != nil {
		t.Fatal(err)
	}
	customers, _ = st.CustomersByUser(ctx, user.ID)
	if len(customers) != 1 {
		t.Fatalf("customer duplicated: %d", len(customers))
	}
}

func TestCreateRequiresExistingCustomer(t *testing.T) {
	svc, _, user := newTestService(t)
	_, err := svc.Create(context.Background(), user.ID, &model.Invoice{
		CustomerID:  "missing",
		InvoiceDate: "2026-08-28",
		DueDate:     "2026-09-11",
		Items:       []model.InvoiceItem{{Service: "Massage", Quantity: 1, UnitPrice: 80, TaxRate: 0.2}},
	})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("err = %v, want ErrCustomerNotFound", err)
	}
}

func TestGeneratePDFWritesFileAndRecordsPath(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	inv, err := svc.CreateFromDraft(ctx, user.ID, model.InvoiceDraft{
		Client: "Max Mustermann", Service: "Massage", Quantity: 3, UnitPrice: 80, TaxRate: 0.2, InvoiceDate: "2026-08-28",
	})
	if err != nil {
		t.Fatal(err)
	}

	path, err := svc.GeneratePDF(ctx, inv.ID, user.ID)
	if err != nil {
		t.Fatalf("GeneratePDF: %v", err)
	}
	if filepath.Base(path) != "R-0001.pdf" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading pdf: %v", err)
	}
	if len(data) == 0 || string(data[:4]) != "%PDF" {
		t.Fatal("not a PDF file")
	}

	stored, err := svc.Get(ctx, inv.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.PDFPath != path {
		t.Fatalf("stored pdf path = %q, want %q", stored.PDFPath, path)
	}
}

func TestSendEmailRequiresPDF(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()
	inv, err := svc.CreateFromDraft(ctx, user.ID, model.InvoiceDraft{
		Client: "Max Mustermann", Service: "Massage", Quantity: 1, UnitPrice: 80, TaxRate: 0.2, InvoiceDate: "2026-08-28",
	})
	if err != nil {
		t.Fatal(err)
	}

	err = svc.SendEmail(ctx, inv.ID, user.ID, emailRequest("max@example.com"))
	if !errors.Is(err, ErrNoPDF) {
		t.Fatalf("err = %v, want ErrNoPDF", err)
	}
}

func TestSendEmailWithoutSMTPFails(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()
	inv, err := svc.CreateFromDraft(ctx, user.ID, model.InvoiceDraft{
		Client: "Max Mustermann", Service: "Massage", Quantity: 1, UnitPrice: 80, TaxRate: 0.2, InvoiceDate: "2026-08-28",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GeneratePDF(ctx, inv.ID, user.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.SendEmail(ctx, inv.ID, user.ID, emailRequest("max@example.com")); err == nil {
		t.Fatal("expected failure without SMTP configuration")
	}

	// The failed dispatch must not mark the invoice as sent.
	stored, err := svc.Get(ctx, inv.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.StatusDraft {
		t.Fatalf("status = %q, want draft", stored.Status)
	}
}
