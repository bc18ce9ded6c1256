package model

import "time"

// UserSettings holds per-user invoicing preferences.
type UserSettings struct {
	InvoicePrefix     string `json:"invoice_prefix"`
	NextInvoiceNumber int    `json:"next_invoice_number"`
}

// User is an account holder. PasswordHash never leaves the server.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email" validate:"required,email"`
	PasswordHash string       `json:"-"`
	FirstName    string       `json:"first_name,omitempty"`
	LastName     string       `json:"last_name,omitempty"`
	CompanyName  string       `json:"company_name,omitempty"`
	Street       string       `json:"street,omitempty"`
	Zip          string       `json:"zip,omitempty"`
	City         string       `json:"city,omitempty"`
	Country      string       `json:"country,omitempty"`
	TaxID        string       `json:"tax_id,omitempty"`
	Settings     UserSettings `json:"settings"`
	CreatedAt    time.Time    `json:"created_at"`
}

// DisplayName returns the company name if set, otherwise the personal name.
func (u User) DisplayName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	return u.FirstName + " " + u.LastName
}

// Export is the single-document GDPR export of everything stored for one
// user.
type Export struct {
	ExportedAt time.Time  `json:"exported_at"`
	User       User       `json:"user"`
	Customers  []Customer `json:"customers"`
	Invoices   []Invoice  `json:"invoices"`
}
