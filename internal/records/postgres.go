package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PostgresSource struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresSource{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresSource) migrate(ctx context.Context) error {
	// Advisory lock so the API and ingestor services don't race on the
	// CREATE TABLE when they start together.
	const lockID = 726144201

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	_, err = s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		note TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		spent_on DATE NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create expenses table: %w", err)
	}
	return nil
}

func (s *PostgresSource) ListAll(ctx context.Context) ([]Expense, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, note, amount::text, spent_on FROM expenses`)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (s *PostgresSource) ListByIDs(ctx context.Context, ids []string) ([]Expense, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note, amount::text, spent_on FROM expenses WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by id: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (s *PostgresSource) Insert(ctx context.Context, expenses []Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, e := range expenses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses(id, note, amount, spent_on) VALUES($1,$2,$3,$4)
			 ON CONFLICT (id) DO UPDATE SET note=excluded.note, amount=excluded.amount, spent_on=excluded.spent_on`,
			e.ID, e.Note, e.Amount.StringFixed(2), e.Date)
		if err != nil {
			return fmt.Errorf("failed to insert expense %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func scanExpenses(rows *sql.Rows) ([]Expense, error) {
	var out []Expense
	for rows.Next() {
		var (
			e      Expense
			amount string
		)
		if err := rows.Scan(&e.ID, &e.Note, &amount, &e.Date); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for expense %s: %w", e.ID, err)
		}
		e.Amount = dec
		out = append(out, e)
	}
	return out, rows.Err()
}
