package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/billirae/billirae/model"
)

// CreateCustomer inserts a customer for the given user.
func (s *Store) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, user_id, name, email, street, zip, city, country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.Street, c.Zip, c.City, c.Country, c.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "store: create customer")
	}
	return nil
}

// CustomerByID fetches one customer, scoped to its owner.
func (s *Store) CustomerByID(ctx context.Context, id, userID string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, email, street, zip, city, country, created_at
		FROM customers WHERE id = ? AND user_id = ?`, id, userID)

	var c model.Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Street, &c.Zip, &c.City, &c.Country, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: customer by id")
	}
	return &c, nil
}

// CustomersByUser lists all customers of a user, newest first.
func (s *Store) CustomersByUser(ctx context.Context, userID string) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, email, street, zip, city, country, created_at
		FROM customers WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "store: customers by user")
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Street, &c.Zip, &c.City, &c.Country, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "store: scan customer")
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// FindOrCreateCustomer resolves a customer by exact name, creating a bare
// record when the spoken name is new. Voice drafts only carry a name.
func (s *Store) FindOrCreateCustomer(ctx context.Context, userID, name string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, email, street, zip, city, country, created_at
		FROM customers WHERE user_id = ? AND name = ?`, userID, name)

	var c model.Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Street, &c.Zip, &c.City, &c.Country, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "store: find customer")
	}

	c = model.Customer{UserID: userID, Name: name}
	if err := s.CreateCustomer(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
