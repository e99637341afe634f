package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the transaction record set the engine evaluates against.
// Implementations must answer the equality, time-range and sum predicates the
// rules need; the engine itself holds no state between calls.
type Store interface {
	// FindByTransactionID returns every record sharing the external
	// transaction identifier, in a stable backend order.
	FindByTransactionID(ctx context.Context, transactionID int64) ([]*Transaction, error)

	// UserHasChargeback reports whether the user has any transaction on
	// record already flagged as charged back.
	UserHasChargeback(ctx context.Context, userID int64) (bool, error)

	// HasTransactionNear reports whether any record other than exclude,
	// sharing the user OR the device, has a date strictly within the given
	// window of at, looking both backward and forward in time.
	HasTransactionNear(ctx context.Context, userID, deviceID int64, at time.Time, window time.Duration, exclude uuid.UUID) (bool, error)

	// SumUserAmountSince sums the user's transaction amounts dated strictly
	// after since, excluding the record identified by exclude.
	SumUserAmountSince(ctx context.Context, userID int64, since time.Time, exclude uuid.UUID) (decimal.Decimal, error)

	// Save persists a decided transaction as a new record.
	Save(ctx context.Context, tx *Transaction) error

	// List returns already-decided records matching the filter.
	List(ctx context.Context, filter Filter) ([]*Transaction, error)
}

// Filter selects decided records for listing. Approved, Denied and Reasons
// combine with OR; an empty trio passes every record. TransactionID, when
// set, additionally requires a substring match on the external identifier's
// decimal representation.
type Filter struct {
	Approved      bool
	Denied        bool
	Reasons       []string
	TransactionID string
}

// MatchesStatus reports whether the transaction passes the OR-combined
// status portion of the filter.
func (f Filter) MatchesStatus(tx *Transaction) bool {
	if !f.Approved && !f.Denied && len(f.Reasons) == 0 {
		return true
	}
	if f.Approved && tx.Approved != nil && *tx.Approved {
		return true
	}
	if f.Denied && tx.Approved != nil && !*tx.Approved {
		return true
	}
	for _, reason := range f.Reasons {
		if tx.RejectionReason == reason {
			return true
		}
	}
	return false
}
