package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMatcher_Match(t *testing.T) {
	stored := historical(2342357, 97051, 285475, testNow.Add(-time.Hour), 374.56, false)
	stored.Deny(ReasonPreviousChargeback)

	tests := []struct {
		name       string
		candidate  *Transaction
		wantMatch  bool
		wantSameID bool
	}{
		{
			name: "exact duplicate",
			candidate: NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
				testNow.Add(-time.Hour), decimal.NewFromFloat(374.56), false),
			wantMatch:  true,
			wantSameID: true,
		},
		{
			name: "same id different amount",
			candidate: NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
				testNow.Add(-time.Hour), decimal.NewFromFloat(99.99), false),
			wantMatch:  false,
			wantSameID: true,
		},
		{
			name: "same id different card",
			candidate: NewTransaction(2342357, 29744, 97051, 285475, "550209******1234",
				testNow.Add(-time.Hour), decimal.NewFromFloat(374.56), false),
			wantMatch:  false,
			wantSameID: true,
		},
		{
			name: "unknown id",
			candidate: NewTransaction(8888888, 29744, 97051, 285475, "434505******9116",
				testNow.Add(-time.Hour), decimal.NewFromFloat(374.56), false),
			wantMatch:  false,
			wantSameID: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{transactions: []*Transaction{stored}}
			matcher := NewMatcher(store)

			match, sameID, err := matcher.Match(context.Background(), tt.candidate)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if (match != nil) != tt.wantMatch {
				t.Errorf("match = %v, wantMatch %v", match, tt.wantMatch)
			}
			if sameID != tt.wantSameID {
				t.Errorf("sameID = %v, want %v", sameID, tt.wantSameID)
			}
			if match != nil && match.RejectionReason != ReasonPreviousChargeback {
				t.Errorf("Expected the stored record's decision on the match, got %q", match.RejectionReason)
			}
		})
	}
}

func TestMatcher_FirstFoundWins(t *testing.T) {
	first := historical(2342357, 97051, 285475, testNow.Add(-time.Hour), 374.56, false)
	first.Deny(ReasonAmountLimitExceeded)
	second := historical(2342357, 97051, 285475, testNow.Add(-time.Hour), 374.56, false)
	second.Approve()

	store := &fakeStore{transactions: []*Transaction{first, second}}
	matcher := NewMatcher(store)

	candidate := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow.Add(-time.Hour), decimal.NewFromFloat(374.56), false)

	match, _, err := matcher.Match(context.Background(), candidate)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if match == nil {
		t.Fatal("Expected a match")
	}
	if match.ID != first.ID {
		t.Error("Expected the first record in store order to win")
	}
}

func newTestService(store Store) *Service {
	svc := NewService(store, DefaultConfig())
	svc.analyzer.now = func() time.Time { return testNow }
	return svc
}

func TestAnalyze_ExactDuplicateReusesDecision(t *testing.T) {
	stored := historical(2342357, 97051, 285475, testNow.Add(-time.Hour), 374.56, false)
	stored.Deny(ReasonExcessiveTransactions)
	store := &fakeStore{transactions: []*Transaction{stored}}
	svc := newTestService(store)

	// Same attempt resubmitted; history has changed meanwhile, but the stored
	// decision must come back verbatim without re-evaluation.
	tx := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow.Add(-time.Hour), decimal.NewFromFloat(374.56), false)

	result, err := svc.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Recommendation != RecommendationDeny {
		t.Errorf("Recommendation = %q, want deny", result.Recommendation)
	}
	if result.RejectionReason != ReasonExcessiveTransactions {
		t.Errorf("RejectionReason = %q, want %q", result.RejectionReason, ReasonExcessiveTransactions)
	}
	if len(store.saved) != 0 {
		t.Errorf("Expected no new record for an exact duplicate, got %d saves", len(store.saved))
	}
}

func TestAnalyze_PartialMatchDenied(t *testing.T) {
	stored := historical(2342357, 97051, 285475, testNow.Add(-time.Hour), 374.56, false)
	store := &fakeStore{transactions: []*Transaction{stored}}
	svc := newTestService(store)

	// Same external id, different amount: fraud indicator, denied without
	// running the pipeline at all.
	tx := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow.Add(-time.Hour), decimal.NewFromFloat(99.99), false)

	result, err := svc.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Recommendation != RecommendationDeny {
		t.Errorf("Recommendation = %q, want deny", result.Recommendation)
	}
	if result.RejectionReason != ReasonExistingID {
		t.Errorf("RejectionReason = %q, want %q", result.RejectionReason, ReasonExistingID)
	}
	if len(store.saved) != 1 {
		t.Fatalf("Expected the denial to be persisted, got %d saves", len(store.saved))
	}
}

func TestAnalyze_FreshIDRunsPipeline(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	tx := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow, decimal.NewFromFloat(374.56), false)

	result, err := svc.Analyze(context.Background(), tx)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Recommendation != RecommendationApprove {
		t.Errorf("Recommendation = %q, want approve", result.Recommendation)
	}
	if len(store.saved) != 1 {
		t.Fatalf("Expected the decided record to be persisted, got %d saves", len(store.saved))
	}
	saved := store.saved[0]
	if saved.Approved == nil || !*saved.Approved {
		t.Error("Expected persisted record to carry the decision")
	}
}

func TestAnalyze_ValidationError(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	tx := NewTransaction(0, 29744, 97051, 285475, "434505******9116",
		testNow, decimal.NewFromFloat(374.56), false)

	_, err := svc.Analyze(context.Background(), tx)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Error("Expected no persistence for an invalid transaction")
	}
}

func TestAnalyze_SaveFailure(t *testing.T) {
	store := &fakeStore{saveErr: fmt.Errorf("disk full")}
	svc := newTestService(store)

	tx := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow, decimal.NewFromFloat(374.56), false)

	_, err := svc.Analyze(context.Background(), tx)
	var persistenceErr *PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Fatalf("Expected *PersistenceError, got %v", err)
	}
}

func TestDecide_DuplicateCopiesDecision(t *testing.T) {
	stored := historical(2342357, 97051, 285475, testNow.Add(-time.Hour), 374.56, false)
	stored.Deny(ReasonAmountLimitExceeded)
	store := &fakeStore{transactions: []*Transaction{stored}}
	svc := newTestService(store)

	tx := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow.Add(-time.Hour), decimal.NewFromFloat(374.56), false)

	rec, err := svc.Decide(context.Background(), tx)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if rec != RecommendationDeny {
		t.Errorf("Recommendation = %q, want deny", rec)
	}
	if tx.RejectionReason != ReasonAmountLimitExceeded {
		t.Errorf("RejectionReason = %q, want %q", tx.RejectionReason, ReasonAmountLimitExceeded)
	}
	if len(store.saved) != 0 {
		t.Error("Decide must not persist; the importer saves in file order")
	}
}

// A partially matching id does not trip the existing_id denial on the batch
// path; only the direct analyze entry treats it as a fraud indicator.
func TestDecide_PartialMatchRunsPipeline(t *testing.T) {
	stored := historical(2342357, 55555, 111, testNow.Add(-50*time.Hour), 10, false)
	store := &fakeStore{transactions: []*Transaction{stored}}
	svc := newTestService(store)

	tx := NewTransaction(2342357, 29744, 97051, 285475, "434505******9116",
		testNow, decimal.NewFromFloat(100), false)

	rec, err := svc.Decide(context.Background(), tx)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if rec != RecommendationApprove {
		t.Errorf("Recommendation = %q, want approve", rec)
	}
	if tx.RejectionReason != "" {
		t.Errorf("Expected no rejection reason, got %q", tx.RejectionReason)
	}
}
