package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

type DisputeType string

const (
	DisputeItemNotReceived DisputeType = "item_not_received"
	DisputeItemDamaged     DisputeType = "item_damaged"
	DisputeNotAsDescribed  DisputeType = "not_as_described"
	DisputeOther           DisputeType = "other"
)

func ParseDisputeType(value string) (DisputeType, error) {
	switch kind := DisputeType(value); kind {
	case DisputeItemNotReceived, DisputeItemDamaged, DisputeNotAsDescribed, DisputeOther:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q is not a dispute type", ErrValidation, value)
	}
}

// DisputeOutcome decides where the order lands when a dispute is resolved:
// release puts it back to delivered with the escrow clock unchanged, refund
// moves money and terminates the order.
type DisputeOutcome string

const (
	OutcomeRelease DisputeOutcome = "release"
	OutcomeRefund  DisputeOutcome = "refund"
)

func ParseDisputeOutcome(value string) (DisputeOutcome, error) {
	switch outcome := DisputeOutcome(value); outcome {
	case OutcomeRelease, OutcomeRefund:
		return outcome, nil
	default:
		return "", fmt.Errorf("%w: %q is not a dispute outcome", ErrValidation, value)
	}
}

// Dispute is opened directly against a delivered order, outside the return
// flow. One open dispute per order at a time.
type Dispute struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	OpenedBy   uuid.UUID      `json:"opened_by"`
	Type       DisputeType    `json:"type"`
	Details    string         `json:"details,omitempty"`
	Status     DisputeStatus  `json:"status"`
	Outcome    DisputeOutcome `json:"outcome,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
	OpenedAt   time.Time      `json:"opened_at"`
	ResolvedAt time.Time      `json:"resolved_at,omitzero"`
}
