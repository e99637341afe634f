package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BordignonMD/anti-fraud/internal/engine"
)

var base = time.Date(2019, 12, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, txs ...*engine.Transaction) {
	t.Helper()
	for _, tx := range txs {
		if err := s.Save(context.Background(), tx); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
}

func record(transactionID, userID, deviceID int64, date time.Time, amount float64, hasCBK bool) *engine.Transaction {
	return engine.NewTransaction(transactionID, 29744, userID, deviceID, "434505******9116",
		date, decimal.NewFromFloat(amount), hasCBK)
}

func TestFindByTransactionID(t *testing.T) {
	s := NewStore()
	first := record(100, 1, 10, base, 50, false)
	second := record(100, 2, 20, base.Add(time.Hour), 60, false)
	seed(t, s, first, second, record(200, 3, 30, base, 70, false))

	found, err := s.FindByTransactionID(context.Background(), 100)
	if err != nil {
		t.Fatalf("FindByTransactionID failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(found))
	}
	// Insertion order is preserved.
	if found[0].ID != first.ID || found[1].ID != second.ID {
		t.Error("Expected records in insertion order")
	}

	// Returned records are copies; mutating them must not leak into the store.
	found[0].Deny(engine.ReasonExistingID)
	again, _ := s.FindByTransactionID(context.Background(), 100)
	if again[0].Approved != nil {
		t.Error("Expected store record to be unaffected by caller mutation")
	}
}

func TestUserHasChargeback(t *testing.T) {
	s := NewStore()
	seed(t, s,
		record(100, 1, 10, base, 50, true),
		record(101, 2, 20, base, 50, false),
	)

	got, err := s.UserHasChargeback(context.Background(), 1)
	if err != nil {
		t.Fatalf("UserHasChargeback failed: %v", err)
	}
	if !got {
		t.Error("Expected chargeback for user 1")
	}

	got, err = s.UserHasChargeback(context.Background(), 2)
	if err != nil {
		t.Fatalf("UserHasChargeback failed: %v", err)
	}
	if got {
		t.Error("Expected no chargeback for user 2")
	}
}

func TestHasTransactionNear(t *testing.T) {
	s := NewStore()
	anchor := record(100, 1, 10, base, 50, false)
	seed(t, s, anchor)

	window := 60 * time.Second

	tests := []struct {
		name     string
		userID   int64
		deviceID int64
		at       time.Time
		exclude  uuid.UUID
		want     bool
	}{
		{"same user 30s after", 1, 99, base.Add(30 * time.Second), uuid.New(), true},
		{"same device 30s before", 9, 10, base.Add(-30 * time.Second), uuid.New(), true},
		{"exactly window apart", 1, 99, base.Add(window), uuid.New(), false},
		{"unrelated", 9, 99, base, uuid.New(), false},
		{"candidate excluded from its own check", 1, 10, base, anchor.ID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.HasTransactionNear(context.Background(), tt.userID, tt.deviceID, tt.at, window, tt.exclude)
			if err != nil {
				t.Fatalf("HasTransactionNear failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasTransactionNear = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSumUserAmountSince(t *testing.T) {
	s := NewStore()
	excluded := record(103, 1, 10, base, 999, false)
	seed(t, s,
		record(100, 1, 10, base.Add(-time.Hour), 100.50, false),
		record(101, 1, 10, base.Add(-2*time.Hour), 200.25, false),
		record(102, 1, 10, base.Add(-30*time.Hour), 5000, false), // before the cutoff
		record(104, 2, 20, base.Add(-time.Hour), 77, false),      // other user
		excluded,
	)

	total, err := s.SumUserAmountSince(context.Background(), 1, base.Add(-24*time.Hour), excluded.ID)
	if err != nil {
		t.Fatalf("SumUserAmountSince failed: %v", err)
	}
	want := decimal.NewFromFloat(300.75)
	if !total.Equal(want) {
		t.Errorf("Sum = %s, want %s", total, want)
	}
}

func TestList(t *testing.T) {
	s := NewStore()
	approved := record(123456, 1, 10, base, 50, false)
	approved.Approve()
	deniedCBK := record(200, 2, 20, base, 50, false)
	deniedCBK.Deny(engine.ReasonPreviousChargeback)
	deniedVelocity := record(300, 3, 30, base, 50, false)
	deniedVelocity.Deny(engine.ReasonExcessiveTransactions)
	seed(t, s, approved, deniedCBK, deniedVelocity)

	tests := []struct {
		name   string
		filter engine.Filter
		want   int
	}{
		{"empty filter returns everything", engine.Filter{}, 3},
		{"approved only", engine.Filter{Approved: true}, 1},
		{"denied only", engine.Filter{Denied: true}, 2},
		{"single reason", engine.Filter{Reasons: []string{engine.ReasonPreviousChargeback}}, 1},
		{"approved or reason combine with OR", engine.Filter{Approved: true, Reasons: []string{engine.ReasonExcessiveTransactions}}, 2},
		{"transaction id substring", engine.Filter{TransactionID: "345"}, 1},
		{"substring plus status", engine.Filter{TransactionID: "345", Denied: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d records, got %d", tt.want, len(got))
			}
		})
	}
}
