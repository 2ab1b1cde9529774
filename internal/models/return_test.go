package models

import (
	"errors"
	"testing"
)

func TestReturnStatusGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status      ReturnStatus
		approvable  bool
		rejectable  bool
		shippable   bool
		receivable  bool
		refundable  bool
		terminal    bool
	}{
		{status: ReturnRequested, approvable: true, rejectable: true},
		{status: ReturnApproved, shippable: true},
		{status: ReturnRejected, terminal: true},
		{status: ReturnShippedBack, receivable: true},
		{status: ReturnReceived, refundable: true},
		{status: ReturnRefunded, terminal: true},
	}

	if len(tests) != len(ReturnStatuses) {
		t.Fatalf("guard table covers %d statuses, want %d", len(tests), len(ReturnStatuses))
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.status), func(t *testing.T) {
			t.Parallel()
			if got := tc.status.CanBeApproved(); got != tc.approvable {
				t.Errorf("CanBeApproved() = %v, want %v", got, tc.approvable)
			}
			if got := tc.status.CanBeRejected(); got != tc.rejectable {
				t.Errorf("CanBeRejected() = %v, want %v", got, tc.rejectable)
			}
			if got := tc.status.CanBeShippedBack(); got != tc.shippable {
				t.Errorf("CanBeShippedBack() = %v, want %v", got, tc.shippable)
			}
			if got := tc.status.CanBeReceived(); got != tc.receivable {
				t.Errorf("CanBeReceived() = %v, want %v", got, tc.receivable)
			}
			if got := tc.status.CanBeRefunded(); got != tc.refundable {
				t.Errorf("CanBeRefunded() = %v, want %v", got, tc.refundable)
			}
			if got := tc.status.IsTerminal(); got != tc.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tc.terminal)
			}
		})
	}
}

func TestParseReturnReason(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"defective", "not_as_described", "changed_mind", "other"} {
		value := value
		t.Run(value, func(t *testing.T) {
			t.Parallel()
			reason, err := ParseReturnReason(value)
			if err != nil {
				t.Fatalf("ParseReturnReason(%q) error = %v", value, err)
			}
			if string(reason) != value {
				t.Fatalf("ParseReturnReason(%q) = %q", value, reason)
			}
		})
	}

	if _, err := ParseReturnReason("buyer_remorse"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseReturnReason() error = %v, want ErrValidation", err)
	}
}

func TestParseReturnStatusRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := ParseReturnStatus("pending"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("ParseReturnStatus() error = %v, want ErrInvalidStatus", err)
	}
}
