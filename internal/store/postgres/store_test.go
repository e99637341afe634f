package postgres

import (
	"testing"

	"github.com/BordignonMD/anti-fraud/internal/engine"
)

func TestStatusCondition(t *testing.T) {
	tests := []struct {
		name     string
		filter   engine.Filter
		want     string
		wantArgs int
	}{
		{
			name:   "empty filter",
			filter: engine.Filter{},
			want:   "",
		},
		{
			name:   "approved only",
			filter: engine.Filter{Approved: true},
			want:   "(approved = true)",
		},
		{
			name:   "approved or denied",
			filter: engine.Filter{Approved: true, Denied: true},
			want:   "(approved = true OR approved = false)",
		},
		{
			name:     "single reason",
			filter:   engine.Filter{Reasons: []string{engine.ReasonExistingID}},
			want:     "(rejection_reason = $1)",
			wantArgs: 1,
		},
		{
			name: "status and reasons combine with OR",
			filter: engine.Filter{
				Denied:  true,
				Reasons: []string{engine.ReasonExcessiveTransactions, engine.ReasonPreviousChargeback},
			},
			want:     "(approved = false OR rejection_reason = $1 OR rejection_reason = $2)",
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []interface{}
			got := statusCondition(tt.filter, &args)
			if got != tt.want {
				t.Errorf("statusCondition() = %q, want %q", got, tt.want)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
