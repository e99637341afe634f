package engine

import "context"

// Result is the outcome reported to callers of the direct analyze entry
// point.
type Result struct {
	TransactionID   int64          `json:"transaction_id"`
	Recommendation  Recommendation `json:"recommendation"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// Service ties the duplicate matcher and the rule pipeline together and
// applies their decisions. It is the single entry point for both the API and
// the batch importer.
//
// The aggregate queries run without transactional isolation from concurrent
// writers: two simultaneous calls for the same user can each read history
// that misses the other's write. Known limitation; batch import avoids it by
// processing rows strictly sequentially.
type Service struct {
	store    Store
	matcher  *Matcher
	analyzer *Analyzer
}

// NewService wires a Service over the given store with the given limits.
func NewService(store Store, cfg Config) *Service {
	return &Service{
		store:    store,
		matcher:  NewMatcher(store),
		analyzer: NewAnalyzer(store, cfg),
	}
}

// Analyze is the direct entry mode for a not-yet-persisted transaction.
//
// An exact duplicate returns the stored decision without persisting a new
// record. A partial match (same external id, different attributes) is treated
// as a fraud indicator: the transaction is denied unconditionally with
// existing_id and persisted. A fresh id runs the full rule pipeline and
// persists the decided record.
func (s *Service) Analyze(ctx context.Context, tx *Transaction) (*Result, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	match, sameID, err := s.matcher.Match(ctx, tx)
	if err != nil {
		return nil, err
	}

	if match != nil {
		return &Result{
			TransactionID:   match.TransactionID,
			Recommendation:  match.Recommendation(),
			RejectionReason: match.RejectionReason,
		}, nil
	}

	var rec Recommendation
	if sameID {
		rec = tx.Deny(ReasonExistingID)
	} else {
		rec, err = s.analyzer.Evaluate(ctx, tx)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.Save(ctx, tx); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	return &Result{
		TransactionID:   tx.TransactionID,
		Recommendation:  rec,
		RejectionReason: tx.RejectionReason,
	}, nil
}

// Decide is the per-row step of the batch entry mode. An exact duplicate has
// its decision copied verbatim; otherwise the rule pipeline runs. The row is
// not persisted here — the importer saves it, in file order, before
// evaluating the next row.
func (s *Service) Decide(ctx context.Context, tx *Transaction) (Recommendation, error) {
	match, _, err := s.matcher.Match(ctx, tx)
	if err != nil {
		return "", err
	}
	if match != nil {
		return tx.CopyDecision(match), nil
	}
	return s.analyzer.Evaluate(ctx, tx)
}

// Save persists a decided transaction, wrapping failures in the persistence
// taxonomy.
func (s *Service) Save(ctx context.Context, tx *Transaction) error {
	if err := s.store.Save(ctx, tx); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}
