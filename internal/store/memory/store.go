package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BordignonMD/anti-fraud/internal/engine"
)

// Store is an in-memory implementation of engine.Store. It keeps records in
// insertion order and is safe for concurrent use. Data is lost on restart -
// for persistence, use the Postgres-backed store.
type Store struct {
	mu           sync.RWMutex
	transactions []*engine.Transaction
}

// NewStore creates an empty in-memory transaction store.
func NewStore() *Store {
	return &Store{}
}

// Save appends a copy of the transaction, assigning a record ID if missing.
func (s *Store) Save(ctx context.Context, tx *engine.Transaction) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	// Store a copy to avoid external modifications
	txCopy := *tx
	s.transactions = append(s.transactions, &txCopy)

	return nil
}

// FindByTransactionID returns copies of every record sharing the external
// identifier, in insertion order.
func (s *Store) FindByTransactionID(ctx context.Context, transactionID int64) ([]*engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*engine.Transaction
	for _, tx := range s.transactions {
		if tx.TransactionID == transactionID {
			txCopy := *tx
			result = append(result, &txCopy)
		}
	}
	return result, nil
}

// UserHasChargeback implements the prior-chargeback predicate.
func (s *Store) UserHasChargeback(ctx context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.HasCBK {
			return true, nil
		}
	}
	return false, nil
}

// HasTransactionNear implements the velocity predicate: any record other than
// exclude sharing the user or the device with |Δt| strictly inside window.
func (s *Store) HasTransactionNear(ctx context.Context, userID, deviceID int64, at time.Time, window time.Duration, exclude uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.ID == exclude {
			continue
		}
		if tx.UserID != userID && tx.DeviceID != deviceID {
			continue
		}
		delta := tx.Date.Sub(at)
		if delta < 0 {
			delta = -delta
		}
		if delta < window {
			return true, nil
		}
	}
	return false, nil
}

// SumUserAmountSince sums the user's amounts dated strictly after since,
// excluding the given record.
func (s *Store) SumUserAmountSince(ctx context.Context, userID int64, since time.Time, exclude uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.transactions {
		if tx.ID == exclude || tx.UserID != userID {
			continue
		}
		if tx.Date.After(since) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// List returns copies of records passing the filter, in insertion order.
func (s *Store) List(ctx context.Context, filter engine.Filter) ([]*engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*engine.Transaction
	for _, tx := range s.transactions {
		if !filter.MatchesStatus(tx) {
			continue
		}
		if filter.TransactionID != "" &&
			!strings.Contains(strconv.FormatInt(tx.TransactionID, 10), filter.TransactionID) {
			continue
		}
		txCopy := *tx
		result = append(result, &txCopy)
	}
	return result, nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}
