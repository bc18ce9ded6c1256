package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/billirae/billirae/model"
)

// MonthlyIncome aggregates a user's invoices per calendar month.
func (s *Store) MonthlyIncome(ctx context.Context, userID string) ([]model.IncomeSummary, error) {
	return s.income(ctx, userID, "%Y-%m")
}

// YearlyIncome aggregates a user's invoices per calendar year.
func (s *Store) YearlyIncome(ctx context.Context, userID string) ([]model.IncomeSummary, error) {
	return s.income(ctx, userID, "%Y")
}

func (s *Store) income(ctx context.Context, userID, format string) ([]model.IncomeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime(?, invoice_date) AS period,
			SUM(total),
			SUM(CASE WHEN status = 'paid' THEN total ELSE 0 END),
			SUM(CASE WHEN status != 'paid' THEN total ELSE 0 END),
			COUNT(*)
		FROM invoices
		WHERE user_id = ?
		GROUP BY period
		ORDER BY period`, format, userID)
	if err != nil {
		return nil, errors.Wrap(err, "store: income summary")
	}
	defer rows.Close()

	summaries := []model.IncomeSummary{}
	for rows.Next() {
		var sum model.IncomeSummary
		if err := rows.Scan(&sum.Period, &sum.Total, &sum.Paid, &sum.Unpaid, &sum.InvoiceCount); err != nil {
			return nil, errors.Wrap(err, "store: scan income summary")
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
