package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReturnStatus string

const (
	ReturnRequested   ReturnStatus = "requested"
	ReturnApproved    ReturnStatus = "approved"
	ReturnRejected    ReturnStatus = "rejected"
	ReturnShippedBack ReturnStatus = "shipped_back"
	ReturnReceived    ReturnStatus = "received"
	ReturnRefunded    ReturnStatus = "refunded"
)

var ReturnStatuses = []ReturnStatus{
	ReturnRequested,
	ReturnApproved,
	ReturnRejected,
	ReturnShippedBack,
	ReturnReceived,
	ReturnRefunded,
}

func ParseReturnStatus(value string) (ReturnStatus, error) {
	status := ReturnStatus(value)
	for _, known := range ReturnStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a return status", ErrInvalidStatus, value)
}

func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnRejected || s == ReturnRefunded
}

func (s ReturnStatus) CanBeApproved() bool {
	return s == ReturnRequested
}

func (s ReturnStatus) CanBeRejected() bool {
	return s == ReturnRequested
}

func (s ReturnStatus) CanBeShippedBack() bool {
	return s == ReturnApproved
}

func (s ReturnStatus) CanBeReceived() bool {
	return s == ReturnShippedBack
}

func (s ReturnStatus) CanBeRefunded() bool {
	return s == ReturnReceived
}

type ReturnReason string

const (
	ReasonDefective      ReturnReason = "defective"
	ReasonNotAsDescribed ReturnReason = "not_as_described"
	ReasonChangedMind    ReturnReason = "changed_mind"
	ReasonOther          ReturnReason = "other"
)

func ParseReturnReason(value string) (ReturnReason, error) {
	switch reason := ReturnReason(value); reason {
	case ReasonDefective, ReasonNotAsDescribed, ReasonChangedMind, ReasonOther:
		return reason, nil
	default:
		return "", fmt.Errorf("%w: %q is not a return reason", ErrValidation, value)
	}
}

// ReturnRequest tracks a single return against an order. At most one
// non-terminal return may exist per order; the store enforces that inside the
// creating transaction.
type ReturnRequest struct {
	ID             uuid.UUID    `json:"id"`
	OrderID        uuid.UUID    `json:"order_id"`
	Reason         ReturnReason `json:"reason"`
	Details        string       `json:"details,omitempty"`
	Status         ReturnStatus `json:"status"`
	RejectReason   string       `json:"reject_reason,omitempty"`
	TrackingNumber string       `json:"tracking_number,omitempty"`
	RequestedAt    time.Time    `json:"requested_at"`
	ApprovedAt     time.Time    `json:"approved_at,omitzero"`
	RejectedAt     time.Time    `json:"rejected_at,omitzero"`
	ShippedBackAt  time.Time    `json:"shipped_back_at,omitzero"`
	ReceivedAt     time.Time    `json:"received_at,omitzero"`
	RefundedAt     time.Time    `json:"refunded_at,omitzero"`
}
