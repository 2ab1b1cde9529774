// Package escrow computes fund-release schedules for delivered orders.
package escrow

import "time"

type Status string

const (
	StatusNotDelivered   Status = "not_delivered"
	StatusPendingRelease Status = "pending_release"
	StatusReleased       Status = "released"
)

// DefaultHold is the production hold window between delivery and release.
const DefaultHold = 48 * time.Hour

// Schedule is a derived view. It is recomputed on every read and never
// persisted, so it cannot go stale.
type Schedule struct {
	Status         Status     `json:"status"`
	ReleaseAt      *time.Time `json:"release_at,omitempty"`
	RemainingHours *int       `json:"remaining_hours,omitempty"`
	Released       bool       `json:"released"`
}

type Calculator struct {
	hold time.Duration
}

// NewCalculator builds a calculator with the given hold window. Non-positive
// values fall back to DefaultHold.
func NewCalculator(hold time.Duration) Calculator {
	if hold <= 0 {
		hold = DefaultHold
	}
	return Calculator{hold: hold}
}

func (c Calculator) Hold() time.Duration {
	return c.hold
}

// Evaluate is a total function of (deliveredAt, now). The release boundary is
// inclusive: funds are released the instant now reaches deliveredAt + hold.
// Partial hours round up so the countdown never under-promises.
func (c Calculator) Evaluate(deliveredAt *time.Time, now time.Time) Schedule {
	if deliveredAt == nil {
		return Schedule{Status: StatusNotDelivered}
	}

	releaseAt := deliveredAt.Add(c.hold)
	if !now.Before(releaseAt) {
		zero := 0
		return Schedule{
			Status:         StatusReleased,
			ReleaseAt:      &releaseAt,
			RemainingHours: &zero,
			Released:       true,
		}
	}

	remaining := int((releaseAt.Sub(now) + time.Hour - time.Nanosecond) / time.Hour)
	return Schedule{
		Status:         StatusPendingRelease,
		ReleaseAt:      &releaseAt,
		RemainingHours: &remaining,
	}
}
