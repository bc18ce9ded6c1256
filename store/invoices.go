package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/billirae/billirae/model"
)

// CreateInvoice inserts an invoice with its items and assigns the next
// sequential invoice number of the owning user, all in one transaction.
func (s *Store) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "store: begin")
	}
	defer tx.Rollback()

	var prefix string
	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT invoice_prefix, next_invoice_number FROM users WHERE id = ?`, inv.UserID).
		Scan(&prefix, &next)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "store: invoice number")
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.InvoiceNumber = fmt.Sprintf("%s%04d", prefix, next)
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = model.StatusDraft
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, user_id, customer_id, invoice_number, invoice_date, due_date,
			notes, currency, language, subtotal, tax_amount, total, status, pdf_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.UserID, inv.CustomerID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		inv.Notes, inv.Currency, inv.Language, inv.Subtotal, inv.TaxAmount, inv.Total,
		inv.Status, inv.PDFPath, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "store: insert invoice")
	}

	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET next_invoice_number = next_invoice_number + 1 WHERE id = ?`, inv.UserID); err != nil {
		return errors.Wrap(err, "store: bump invoice number")
	}

	return errors.Wrap(tx.Commit(), "store: commit")
}

func insertItems(ctx context.Context, tx *sql.Tx, invoiceID string, items []model.InvoiceItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, service, description, quantity, unit_price, tax_rate)
			VALUES (?, ?, ?, ?, ?, ?)`,
			invoiceID, item.Service, item.Description, item.Quantity, item.UnitPrice, item.TaxRate)
		if err != nil {
			return errors.Wrap(err, "store: insert item")
		}
	}
	return nil
}

const invoiceColumns = `id, user_id, customer_id, invoice_number, invoice_date, due_date,
	notes, currency, language, subtotal, tax_amount, total, status, pdf_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.UserID, &inv.CustomerID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.DueDate,
		&inv.Notes, &inv.Currency, &inv.Language, &inv.Subtotal, &inv.TaxAmount, &inv.Total,
		&inv.Status, &inv.PDFPath, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: scan invoice")
	}
	return &inv, nil
}

func (s *Store) loadItems(ctx context.Context, invoiceID string) ([]model.InvoiceItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, description, quantity, unit_price, tax_rate
		FROM invoice_items WHERE invoice_id = ? ORDER BY id`, invoiceID)
	if err != nil {
		return nil, errors.Wrap(err, "store: load items")
	}
	defer rows.Close()

	items := []model.InvoiceItem{}
	for rows.Next() {
		var it model.InvoiceItem
		if err := rows.Scan(&it.Service, &it.Description, &it.Quantity, &it.UnitPrice, &it.TaxRate); err != nil {
			return nil, errors.Wrap(err, "store: scan item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// InvoiceByID fetches one invoice with its items, scoped to its owner.
func (s *Store) InvoiceByID(ctx context.Context, id, userID string) (*model.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND user_id = ?`, id, userID)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	inv.Items, err = s.loadItems(ctx, inv.ID)
	return inv, err
}

// InvoicesByUser lists a user's invoices, optionally filtered by status,
// newest first.
func (s *Store) InvoicesByUser(ctx context.Context, userID, status string) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "store: invoices by user")
	}
	defer rows.Close()

	invoices := []model.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "store: invoices by user")
	}

	for i := range invoices {
		items, err := s.loadItems(ctx, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		invoices[i].Items = items
	}
	return invoices, nil
}

// UpdateInvoice replaces an invoice's mutable fields and items. The invoice
// number and creation time are immutable.
func (s *Store) UpdateInvoice(ctx context.Context, inv *model.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "store: begin")
	}
	defer tx.Rollback()

	inv.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET customer_id = ?, invoice_date = ?, due_date = ?, notes = ?,
			currency = ?, language = ?, subtotal = ?, tax_amount = ?, total = ?,
			status = ?, pdf_path = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		inv.CustomerID, inv.InvoiceDate, inv.DueDate, inv.Notes,
		inv.Currency, inv.Language, inv.Subtotal, inv.TaxAmount, inv.Total,
		inv.Status, inv.PDFPath, inv.UpdatedAt, inv.ID, inv.UserID)
	if err != nil {
		return errors.Wrap(err, "store: update invoice")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "store: update invoice")
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, inv.ID); err != nil {
		return errors.Wrap(err, "store: replace items")
	}
	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "store: commit")
}

// DeleteInvoice removes an invoice and its items.
func (s *Store) DeleteInvoice(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errors.Wrap(err, "store: delete invoice")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "store: delete invoice")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInvoicePDF records where the rendered PDF lives.
func (s *Store) SetInvoicePDF(ctx context.Context, id, userID, path string) error {
	return s.setInvoiceField(ctx, id, userID, "pdf_path", path)
}

// SetInvoiceStatus moves an invoice through its status lifecycle.
func (s *Store) SetInvoiceStatus(ctx context.Context, id, userID, status string) error {
	return s.setInvoiceField(ctx, id, userID, "status", status)
}

func (s *Store) setInvoiceField(ctx context.Context, id, userID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET `+column+` = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		value, time.Now().UTC(), id, userID)
	if err != nil {
		return errors.Wrapf(err, "store: set %s", column)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "store: set %s", column)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
