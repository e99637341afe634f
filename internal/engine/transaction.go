package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recommendation is the token returned to callers for a decided transaction.
type Recommendation string

const (
	// RecommendationApprove indicates the transaction should be accepted.
	RecommendationApprove Recommendation = "approve"
	// RecommendationDeny indicates the transaction should be declined.
	RecommendationDeny Recommendation = "deny"
)

// Rejection reason keys. Stable identifiers stored on denied transactions;
// callers may localize them for presentation.
const (
	ReasonExistingID            = "existing_id"
	ReasonExcessiveTransactions = "excessive_transactions"
	ReasonAmountLimitExceeded   = "amount_limit_exceeded"
	ReasonPreviousChargeback    = "previous_chargeback"
)

// Transaction is one payment attempt submitted for risk analysis.
// TransactionID is the external identifier and is not unique in the store:
// distinct attempts can legitimately reuse it, so duplicates are
// disambiguated by the full attribute set (see Matches).
type Transaction struct {
	// ID is the store-level record identifier, assigned at ingestion.
	// Aggregate queries use it to exclude the candidate from its own history.
	ID uuid.UUID `json:"id"`

	TransactionID int64           `json:"transaction_id"`
	MerchantID    int64           `json:"merchant_id"`
	UserID        int64           `json:"user_id"`
	DeviceID      int64           `json:"device_id"`
	CardNumber    string          `json:"card_number"`
	Date          time.Time       `json:"transaction_date"`
	Amount        decimal.Decimal `json:"transaction_amount"`
	HasCBK        bool            `json:"has_cbk"`

	// Approved is nil until a decision has been applied.
	Approved        *bool  `json:"approved"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// NewTransaction builds an undecided transaction with a fresh record ID.
// The date is normalized to UTC and truncated to second granularity, which is
// the precision the store keeps and the duplicate matcher compares at.
func NewTransaction(transactionID, merchantID, userID, deviceID int64, cardNumber string, date time.Time, amount decimal.Decimal, hasCBK bool) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		TransactionID: transactionID,
		MerchantID:    merchantID,
		UserID:        userID,
		DeviceID:      deviceID,
		CardNumber:    cardNumber,
		Date:          date.UTC().Truncate(time.Second),
		Amount:        amount,
		HasCBK:        hasCBK,
	}
}

// Matches reports whether other carries the same full attribute set as t.
// Integer fields compare as integers, the card number as an exact string,
// the date at second-truncated UTC equality and the amount as exact decimal
// equality with no tolerance. Record IDs and decision fields do not
// participate.
func (t *Transaction) Matches(other *Transaction) bool {
	return t.TransactionID == other.TransactionID &&
		t.MerchantID == other.MerchantID &&
		t.UserID == other.UserID &&
		t.DeviceID == other.DeviceID &&
		t.CardNumber == other.CardNumber &&
		t.Date.UTC().Truncate(time.Second).Equal(other.Date.UTC().Truncate(time.Second)) &&
		t.Amount.Equal(other.Amount)
}

// Approve marks the transaction accepted and returns the recommendation token.
func (t *Transaction) Approve() Recommendation {
	approved := true
	t.Approved = &approved
	t.RejectionReason = ""
	return RecommendationApprove
}

// Deny marks the transaction declined with the given reason key and returns
// the recommendation token.
func (t *Transaction) Deny(reason string) Recommendation {
	approved := false
	t.Approved = &approved
	t.RejectionReason = reason
	return RecommendationDeny
}

// CopyDecision copies the decision fields verbatim from a previously decided
// duplicate, so reprocessing a seen transaction yields the identical outcome
// even if risk conditions have changed since.
func (t *Transaction) CopyDecision(from *Transaction) Recommendation {
	if from.Approved != nil {
		approved := *from.Approved
		t.Approved = &approved
	} else {
		t.Approved = nil
	}
	t.RejectionReason = from.RejectionReason
	return t.Recommendation()
}

// Recommendation derives the token from the decision fields. Undecided
// transactions map to deny; callers are expected to decide before reading.
func (t *Transaction) Recommendation() Recommendation {
	if t.Approved != nil && *t.Approved {
		return RecommendationApprove
	}
	return RecommendationDeny
}

// Validate checks the invariants every stored transaction must hold.
func (t *Transaction) Validate() error {
	if t.TransactionID <= 0 {
		return &ValidationError{Field: "transaction_id", Err: fmt.Errorf("must be a positive integer, got %d", t.TransactionID)}
	}
	if t.UserID <= 0 {
		return &ValidationError{Field: "user_id", Err: fmt.Errorf("must be a positive integer, got %d", t.UserID)}
	}
	if t.MerchantID <= 0 {
		return &ValidationError{Field: "merchant_id", Err: fmt.Errorf("must be a positive integer, got %d", t.MerchantID)}
	}
	if t.CardNumber == "" {
		return &ValidationError{Field: "card_number", Err: fmt.Errorf("is required")}
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "transaction_date", Err: fmt.Errorf("is required")}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "transaction_amount", Err: fmt.Errorf("must not be negative, got %s", t.Amount)}
	}
	return nil
}

// dateLayouts are the external representations accepted for
// transaction_date, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses an external transaction_date representation into an
// absolute timestamp normalized to UTC at second granularity. Layouts without
// an offset are interpreted as UTC.
func ParseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "transaction_date", Err: fmt.Errorf("unrecognized date %q", value)}
}
