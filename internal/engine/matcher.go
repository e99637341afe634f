package engine

import "context"

// Matcher finds a previously processed attempt of the same transaction. It is
// read-only: callers decide whether to copy the match's decision.
type Matcher struct {
	store Store
}

// NewMatcher creates a duplicate matcher over the given store.
func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// Match returns the first stored record sharing the candidate's external
// transaction_id whose full attribute set matches, or nil when none does.
// It also reports whether any record shares the id at all, so callers can
// distinguish a fresh id from a partial match (same id, different attributes),
// which is itself a fraud indicator.
func (m *Matcher) Match(ctx context.Context, tx *Transaction) (match *Transaction, sameID bool, err error) {
	existing, err := m.store.FindByTransactionID(ctx, tx.TransactionID)
	if err != nil {
		return nil, false, &StoreQueryError{Op: "find_by_transaction_id", Err: err}
	}
	for _, candidate := range existing {
		if tx.Matches(candidate) {
			return candidate, true, nil
		}
	}
	return nil, len(existing) > 0, nil
}
