package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/BordignonMD/anti-fraud/internal/engine"
)

// Store is the Postgres-backed implementation of engine.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool from a database URL and verifies
// connectivity with a ping.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("Connect: parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const transactionColumns = `
	id, transaction_id, merchant_id, user_id, device_id, card_number,
	transaction_date, transaction_amount, has_cbk, approved, rejection_reason`

// Save inserts the transaction as a new record.
func (s *Store) Save(ctx context.Context, tx *engine.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	var reason *string
	if tx.RejectionReason != "" {
		reason = &tx.RejectionReason
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, transaction_id, merchant_id, user_id, device_id, card_number,
			transaction_date, transaction_amount, has_cbk, approved, rejection_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, tx.TransactionID, tx.MerchantID, tx.UserID, tx.DeviceID, tx.CardNumber,
		tx.Date.UTC(), tx.Amount, tx.HasCBK, tx.Approved, reason,
	)
	if err != nil {
		return fmt.Errorf("Save: inserting transaction: %w", err)
	}
	return nil
}

// FindByTransactionID returns every record sharing the external identifier,
// oldest first so duplicate matching is deterministic.
func (s *Store) FindByTransactionID(ctx context.Context, transactionID int64) ([]*engine.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE transaction_id = $1
		ORDER BY created_at, id`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("FindByTransactionID: querying: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// UserHasChargeback reports whether the user has any charged-back record.
func (s *Store) UserHasChargeback(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE user_id = $1 AND has_cbk
		)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("UserHasChargeback: querying: %w", err)
	}
	return exists, nil
}

// HasTransactionNear reports whether any other record sharing the user or the
// device falls strictly within the window of at, in either direction.
func (s *Store) HasTransactionNear(ctx context.Context, userID, deviceID int64, at time.Time, window time.Duration, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE (user_id = $1 OR device_id = $2)
			  AND ABS(EXTRACT(EPOCH FROM (transaction_date - $3::timestamptz))) < $4
			  AND id <> $5
		)`,
		userID, deviceID, at.UTC(), window.Seconds(), exclude,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasTransactionNear: querying: %w", err)
	}
	return exists, nil
}

// SumUserAmountSince sums the user's amounts dated strictly after since,
// excluding the given record.
func (s *Store) SumUserAmountSince(ctx context.Context, userID int64, since time.Time, exclude uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(transaction_amount), 0)
		FROM transactions
		WHERE user_id = $1
		  AND transaction_date > $2
		  AND id <> $3`,
		userID, since.UTC(), exclude,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumUserAmountSince: querying: %w", err)
	}
	return total, nil
}

// List returns records passing the filter, newest first.
func (s *Store) List(ctx context.Context, filter engine.Filter) ([]*engine.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`

	var conditions []string
	var args []interface{}

	if status := statusCondition(filter, &args); status != "" {
		conditions = append(conditions, status)
	}
	if filter.TransactionID != "" {
		args = append(args, "%"+filter.TransactionID+"%")
		conditions = append(conditions, fmt.Sprintf("transaction_id::text LIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: querying: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// statusCondition builds the OR-combined approval/reason predicate, appending
// its placeholders to args. Empty when the filter has no status portion.
func statusCondition(filter engine.Filter, args *[]interface{}) string {
	var parts []string
	if filter.Approved {
		parts = append(parts, "approved = true")
	}
	if filter.Denied {
		parts = append(parts, "approved = false")
	}
	for _, reason := range filter.Reasons {
		*args = append(*args, reason)
		parts = append(parts, fmt.Sprintf("rejection_reason = $%d", len(*args)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// rowScanner is satisfied by pgx.Rows; it keeps scanTransactions testable.
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTransactions(rows rowScanner) ([]*engine.Transaction, error) {
	var result []*engine.Transaction
	for rows.Next() {
		var tx engine.Transaction
		var reason *string
		err := rows.Scan(
			&tx.ID, &tx.TransactionID, &tx.MerchantID, &tx.UserID, &tx.DeviceID,
			&tx.CardNumber, &tx.Date, &tx.Amount, &tx.HasCBK, &tx.Approved, &reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scanTransactions: scanning row: %w", err)
		}
		if reason != nil {
			tx.RejectionReason = *reason
		}
		tx.Date = tx.Date.UTC()
		result = append(result, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanTransactions: iterating rows: %w", err)
	}
	return result, nil
}
