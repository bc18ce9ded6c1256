package model

import "time"

// DateLayout is the wire format for invoice dates.
const DateLayout = "2006-01-02"

// InvoiceDraft is the structured interpretation of one spoken invoice:
// a single customer and a single service line. It stays client-editable
// until it is committed to the store.
type InvoiceDraft struct {
	Client      string  `json:"client" validate:"required"`
	Service     string  `json:"service" validate:"required"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=1"`
	InvoiceDate string  `json:"invoice_date"`
	Currency    string  `json:"currency"`
	Language    string  `json:"language"`
}

// InvoiceItem is one billable line on an invoice.
type InvoiceItem struct {
	Service     string  `json:"service" validate:"required"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=1"`
}

// Invoice is a persisted invoice with computed totals. Unlike the draft it
// supports multiple line items.
type Invoice struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	CustomerID    string        `json:"customer_id"`
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	DueDate       string        `json:"due_date"`
	Items         []InvoiceItem `json:"items"`
	Notes         string        `json:"notes,omitempty"`
	Currency      string        `json:"currency"`
	Language      string        `json:"language"`
	Subtotal      float64       `json:"subtotal"`
	TaxAmount     float64       `json:"tax_amount"`
	Total         float64       `json:"total"`
	Status        string        `json:"status"`
	PDFPath       string        `json:"pdf_path,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Invoice status lifecycle.
const (
	StatusDraft   = "draft"
	StatusSent    = "sent"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
)

// Customer is an invoice recipient owned by one user.
type Customer struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email,omitempty" validate:"omitempty,email"`
	Street    string    `json:"street,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IncomeSummary is one aggregate row of the income dashboard. Period is a
// month key ("2026-08") or a year key ("2026") depending on the query.
type IncomeSummary struct {
	Period       string  `json:"period"`
	Total        float64 `json:"total"`
	Paid         float64 `json:"paid"`
	Unpaid       float64 `json:"unpaid"`
	InvoiceCount int     `json:"invoice_count"`
}
