package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/billirae/billirae/model"
)

// ExportUserData collects everything stored for one user into a single
// document.
func (s *Store) ExportUserData(ctx context.Context, userID string) (*model.Export, error) {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	customers, err := s.CustomersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.InvoicesByUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return &model.Export{
		ExportedAt: time.Now().UTC(),
		User:       *user,
		Customers:  customers,
		Invoices:   invoices,
	}, nil
}

// DeleteUserAccount irreversibly removes the user and, via cascading
// foreign keys, all customers, invoices and items.
func (s *Store) DeleteUserAccount(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return errors.Wrap(err, "store: delete account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "store: delete account")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
