package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/billirae/billirae/model"
)

// CreateUser inserts a new account. The id and creation time are assigned
// here; a taken e-mail address yields ErrEmailExists.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	if u.Settings.NextInvoiceNumber == 0 {
		u.Settings.NextInvoiceNumber = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, company_name,
			street, zip, city, country, tax_id, invoice_prefix, next_invoice_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.CompanyName,
		u.Street, u.Zip, u.City, u.Country, u.TaxID,
		u.Settings.InvoicePrefix, u.Settings.NextInvoiceNumber, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrEmailExists
	}
	if err != nil {
		return errors.Wrap(err, "store: create user")
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, company_name,
	street, zip, city, country, tax_id, invoice_prefix, next_invoice_number, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CompanyName,
		&u.Street, &u.Zip, &u.City, &u.Country, &u.TaxID,
		&u.Settings.InvoicePrefix, &u.Settings.NextInvoiceNumber, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: scan user")
	}
	return &u, nil
}

// UserByEmail looks an account up by e-mail address.
func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// UserByID looks an account up by id.
func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UpdateProfile replaces the profile fields and the invoice prefix. The
// invoice counter is owned by invoice creation and never written here.
func (s *Store) UpdateProfile(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, company_name = ?,
			street = ?, zip = ?, city = ?, country = ?, tax_id = ?, invoice_prefix = ?
		WHERE id = ?`,
		u.FirstName, u.LastName, u.CompanyName,
		u.Street, u.Zip, u.City, u.Country, u.TaxID, u.Settings.InvoicePrefix, u.ID)
	if err != nil {
		return errors.Wrap(err, "store: update profile")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "store: update profile")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
