package policy

import (
	"fmt"
	"strings"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(policy *Policy) error {
	if policy.Escrow.HoldHours <= 0 {
		return fmt.Errorf("escrow hold_hours must be positive")
	}

	if policy.Returns.WindowDays <= 0 {
		return fmt.Errorf("returns window_days must be positive")
	}

	seen := make(map[string]bool)
	for i, carrier := range policy.Shipping.Carriers {
		if strings.TrimSpace(carrier) == "" {
			return fmt.Errorf("shipping carrier %d is blank", i)
		}
		key := carrierKey(carrier)
		if seen[key] {
			return fmt.Errorf("duplicate shipping carrier: %s", carrier)
		}
		seen[key] = true
	}

	return nil
}
