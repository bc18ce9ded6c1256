package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/billirae/billirae/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, email string) *model.User {
	t.Helper()
	u := &model.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Anna",
		LastName:     "Beispiel",
		Settings:     model.UserSettings{InvoicePrefix: "R-"},
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func createTestInvoice(t *testing.T, s *Store, userID, customerID, date string, total float64, status string) *model.Invoice {
	t.Helper()
	inv := &model.Invoice{
		UserID:      userID,
		CustomerID:  customerID,
		InvoiceDate: date,
		DueDate:     date,
		Currency:    "EUR",
		Language:    "de",
		Subtotal:    total,
		TaxAmount:   0,
		Total:       total,
		Status:      status,
		Items: []model.InvoiceItem{
			{Service: "Massage", Quantity: 1, UnitPrice: total, TaxRate: 0},
		},
	}
	if err := s.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	createTestUser(t, s, "anna@example.com")

	err := s.CreateUser(context.Background(), &model.User{Email: "anna@example.com", PasswordHash: "y"})
	if err != ErrEmailExists {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}

func TestUserLookups(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "anna@example.com")

	byEmail, err := s.UserByEmail(context.Background(), "anna@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("id mismatch")
	}
	if _, err := s.UserByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInvoiceNumberingIsSequentialPerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "anna@example.com")
	other := createTestUser(t, s, "bernd@example.com")
	c, err := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")
	if err != nil {
		t.Fatal(err)
	}
	oc, err := s.FindOrCreateCustomer(ctx, other.ID, "Max Mustermann")
	if err != nil {
		t.Fatal(err)
	}

	first := createTestInvoice(t, s, u.ID, c.ID, "2026-08-01", 100, model.StatusDraft)
	second := createTestInvoice(t, s, u.ID, c.ID, "2026-08-02", 200, model.StatusDraft)
	foreign := createTestInvoice(t, s, other.ID, oc.ID, "2026-08-03", 300, model.StatusDraft)

	if first.InvoiceNumber != "R-0001" {
		t.Errorf("first number = %q", first.InvoiceNumber)
	}
	if second.InvoiceNumber != "R-0002" {
		t.Errorf("second number = %q", second.InvoiceNumber)
	}
	if foreign.InvoiceNumber != "R-0001" {
		t.Errorf("other user's first number = %q, counters must be per user", foreign.InvoiceNumber)
	}
}

func TestInvoiceOwnershipScoping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "anna@example.com")
	intruder := createTestUser(t, s, "eve@example.com")
	c, _ := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")
	inv := createTestInvoice(t, s, u.ID, c.ID, "2026-08-01", 100, model.StatusDraft)

	if _, err := s.InvoiceByID(ctx, inv.ID, intruder.ID); err != ErrNotFound {
		t.Fatalf("foreign read: %v, want ErrNotFound", err)
	}
	if err := s.DeleteInvoice(ctx, inv.ID, intruder.ID); err != ErrNotFound {
		t.Fatalf("foreign delete: %v, want ErrNotFound", err)
	}
	if _, err := s.InvoiceByID(ctx, inv.ID, u.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
}

func TestFindOrCreateCustomerReuses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "anna@example.com")

	first, err := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != again.ID {
		t.Fatal("same name created twice")
	}

	customers, err := s.CustomersByUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(customers) != 1 {
		t.Fatalf("got %d customers, want 1", len(customers))
	}
}

func TestIncomeSummaries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "anna@example.com")
	c, _ := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")

	createTestInvoice(t, s, u.ID, c.ID, "2026-07-10", 100, model.StatusPaid)
	createTestInvoice(t, s, u.ID, c.ID, "2026-07-20", 50, model.StatusSent)
	createTestInvoice(t, s, u.ID, c.ID, "2026-08-05", 200, model.StatusPaid)
	createTestInvoice(t, s, u.ID, c.ID, "2025-12-31", 40, model.StatusDraft)

	monthly, err := s.MonthlyIncome(ctx, u.ID)
	if err != nil {
		t.Fatalf("MonthlyIncome: %v", err)
	}
	if len(monthly) != 3 {
		t.Fatalf("got %d months, want 3", len(monthly))
	}
	july := monthly[1]
	if july.Period != "2026-07" || july.Total != 150 || july.Paid != 100 || july.Unpaid != 50 || july.InvoiceCount != 2 {
		t.Fatalf("july = %+v", july)
	}

	yearly, err := s.YearlyIncome(ctx, u.ID)
	if err != nil {
		t.Fatalf("YearlyIncome: %v", err)
	}
	if len(yearly) != 2 {
		t.Fatalf("got %d years, want 2", len(yearly))
	}
	if yearly[1].Period != "2026" || yearly[1].Total != 350 {
		t.Fatalf("2026 = %+v", yearly[1])
	}
}

func TestUpdateInvoiceReplacesItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "anna@example.com")
	c, _ := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")
	inv := createTestInvoice(t, s, u.ID, c.ID, "2026-08-01", 100, model.StatusDraft)

	inv.Items = []model.InvoiceItem{
		{Service: "Massage", Quantity: 3, UnitPrice: 80, TaxRate: 0.2},
		{Service: "Anfahrt", Quantity: 1, UnitPrice: 20, TaxRate: 0.2},
	}
	if err := s.UpdateInvoice(ctx, inv); err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}

	got, err := s.InvoiceByID(ctx, inv.ID, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(got.Items))
	}
	if got.InvoiceNumber != inv.InvoiceNumber {
		t.Fatal("invoice number must be immutable")
	}
}

func TestExportAndDeleteAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "anna@example.com")
	c, _ := s.FindOrCreateCustomer(ctx, u.ID, "Max Mustermann")
	createTestInvoice(t, s, u.ID, c.ID, "2026-08-01", 100, model.StatusDraft)

	export, err := s.ExportUserData(ctx, u.ID)
	if err != nil {
		t.Fatalf("ExportUserData: %v", err)
	}
	if export.User.ID != u.ID || len(export.Customers) != 1 || len(export.Invoices) != 1 {
		t.Fatalf("export = %+v", export)
	}

	if err := s.DeleteUserAccount(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUserAccount: %v", err)
	}
	if _, err := s.UserByID(ctx, u.ID); err != ErrNotFound {
		t.Fatalf("user survived deletion: %v", err)
	}
	customers, err := s.CustomersByUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(customers) != 0 {
		t.Fatal("customers survived account deletion")
	}
	invoices, err := s.InvoicesByUser(ctx, u.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(invoices) != 0 {
		t.Fatal("invoices survived account deletion")
	}
	if err := s.DeleteUserAccount(ctx, u.ID); err != ErrNotFound {
		t.Fatalf("second delete: %v, want ErrNotFound", err)
	}
}
