package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// velocityWindow is the proximity threshold for the excessive-transactions
// rule. The comparison is strict: |Δt| < 60s, both directions in time.
const velocityWindow = 60 * time.Second

// Config carries the tunable limits for the rule pipeline. The engine never
// reads the environment itself; callers load these from configuration and
// pass them in.
type Config struct {
	// AmountLimit is the maximum trailing-window spend per user, current
	// transaction included.
	AmountLimit decimal.Decimal

	// Period is the length of the trailing window for the amount limit.
	Period time.Duration
}

// DefaultConfig returns the stock limits: 1000 over 24 hours.
func DefaultConfig() Config {
	return Config{
		AmountLimit: decimal.NewFromInt(1000),
		Period:      24 * time.Hour,
	}
}

// rule is one entry in the ordered pipeline: a named predicate plus the
// decision applied when it matches.
type rule struct {
	name    string
	matches func(ctx context.Context, tx *Transaction) (bool, error)
	apply   func(tx *Transaction) Recommendation
}

// Analyzer evaluates a transaction against the fixed rule pipeline. Rules run
// in strict priority order and the first match wins.
type Analyzer struct {
	store Store
	cfg   Config
	now   func() time.Time
	rules []rule
}

// NewAnalyzer builds the pipeline against the given store and limits.
func NewAnalyzer(store Store, cfg Config) *Analyzer {
	a := &Analyzer{store: store, cfg: cfg, now: time.Now}
	a.rules = []rule{
		{
			// A transaction arriving already flagged as charged back is
			// approved. Inherited behavior, preserved exactly; see the tests
			// pinning it before assuming it is a defect.
			name:    "self_chargeback",
			matches: a.selfChargeback,
			apply:   func(tx *Transaction) Recommendation { return tx.Approve() },
		},
		{
			name:    "excessive_transactions",
			matches: a.excessiveTransactions,
			apply:   func(tx *Transaction) Recommendation { return tx.Deny(ReasonExcessiveTransactions) },
		},
		{
			name:    "amount_limit",
			matches: a.amountLimitExceeded,
			apply:   func(tx *Transaction) Recommendation { return tx.Deny(ReasonAmountLimitExceeded) },
		},
		{
			name:    "previous_chargeback",
			matches: a.previousChargeback,
			apply:   func(tx *Transaction) Recommendation { return tx.Deny(ReasonPreviousChargeback) },
		},
	}
	return a
}

// Evaluate runs the pipeline and applies exactly one decision to tx. A store
// query failure aborts the evaluation with a StoreQueryError; the engine
// never falls back to a default decision.
func (a *Analyzer) Evaluate(ctx context.Context, tx *Transaction) (Recommendation, error) {
	for _, r := range a.rules {
		matched, err := r.matches(ctx, tx)
		if err != nil {
			return "", &StoreQueryError{Op: r.name, Err: err}
		}
		if matched {
			return r.apply(tx), nil
		}
	}
	return tx.Approve(), nil
}

func (a *Analyzer) selfChargeback(ctx context.Context, tx *Transaction) (bool, error) {
	return tx.HasCBK, nil
}

// excessiveTransactions checks for any other transaction sharing the user or
// the device within the velocity window of the candidate's date. Forward and
// backward: a row landing 30s before an already-stored one is just as
// suspicious as one landing 30s after.
func (a *Analyzer) excessiveTransactions(ctx context.Context, tx *Transaction) (bool, error) {
	return a.store.HasTransactionNear(ctx, tx.UserID, tx.DeviceID, tx.Date, velocityWindow, tx.ID)
}

// amountLimitExceeded sums the user's other transactions inside the trailing
// window and adds the candidate's own amount; strictly above the limit denies.
// The window trails the current wall-clock time, not the candidate's date.
func (a *Analyzer) amountLimitExceeded(ctx context.Context, tx *Transaction) (bool, error) {
	since := a.now().Add(-a.cfg.Period)
	total, err := a.store.SumUserAmountSince(ctx, tx.UserID, since, tx.ID)
	if err != nil {
		return false, err
	}
	return total.Add(tx.Amount).GreaterThan(a.cfg.AmountLimit), nil
}

func (a *Analyzer) previousChargeback(ctx context.Context, tx *Transaction) (bool, error) {
	return a.store.UserHasChargeback(ctx, tx.UserID)
}
