package policy

import (
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Parallel()

	policy, err := NewParser().ParseFromString("escrow:\n  hold_hours: 2\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if policy.Escrow.HoldHours != 2 {
		t.Fatalf("HoldHours = %d, want 2", policy.Escrow.HoldHours)
	}
	if policy.Returns.WindowDays != 14 {
		t.Fatalf("WindowDays = %d, want default 14", policy.Returns.WindowDays)
	}
}

func TestParseFullPolicy(t *testing.T) {
	t.Parallel()

	content := `
escrow:
  hold_hours: 72
returns:
  window_days: 30
shipping:
  carriers:
    - USPS
    - FedEx
`
	policy, err := NewParser().ParseFromString(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := NewValidator().Validate(policy); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got := policy.EscrowHold(); got != 72*time.Hour {
		t.Fatalf("EscrowHold() = %v, want 72h", got)
	}
	if got := policy.ReturnWindow(); got != 30*24*time.Hour {
		t.Fatalf("ReturnWindow() = %v, want 720h", got)
	}
	if !policy.CarrierAllowed("USPS") {
		t.Fatal("CarrierAllowed(USPS) = false")
	}
	if policy.CarrierAllowed("DHL") {
		t.Fatal("CarrierAllowed(DHL) = true, want false")
	}
}

func TestValidateRejectsBadPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy Policy
	}{
		{
			name:   "zero hold",
			policy: Policy{Escrow: EscrowPolicy{HoldHours: 0}, Returns: ReturnPolicy{WindowDays: 14}},
		},
		{
			name:   "negative window",
			policy: Policy{Escrow: EscrowPolicy{HoldHours: 48}, Returns: ReturnPolicy{WindowDays: -1}},
		},
		{
			name: "blank carrier",
			policy: Policy{
				Escrow:   EscrowPolicy{HoldHours: 48},
				Returns:  ReturnPolicy{WindowDays: 14},
				Shipping: ShippingPolicy{Carriers: []string{" "}},
			},
		},
		{
			name: "duplicate carrier",
			policy: Policy{
				Escrow:   EscrowPolicy{HoldHours: 48},
				Returns:  ReturnPolicy{WindowDays: 14},
				Shipping: ShippingPolicy{Carriers: []string{"UPS", "UPS"}},
			},
		},
		{
			name: "duplicate carrier different spelling",
			policy: Policy{
				Escrow:   EscrowPolicy{HoldHours: 48},
				Returns:  ReturnPolicy{WindowDays: 14},
				Shipping: ShippingPolicy{Carriers: []string{"fedex", "Fed Ex"}},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := NewValidator().Validate(&tc.policy); err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}

func TestCarrierAllowedIgnoresCaseAndSeparators(t *testing.T) {
	t.Parallel()

	policy := Default()
	policy.Shipping.Carriers = []string{"fedex", "usps"}

	if !policy.CarrierAllowed("FedEx") {
		t.Fatal("CarrierAllowed(FedEx) = false with allowlist entry fedex")
	}
	if !policy.CarrierAllowed("fed ex") {
		t.Fatal("CarrierAllowed(fed ex) = false with allowlist entry fedex")
	}
	if !policy.CarrierAllowed("USPS") {
		t.Fatal("CarrierAllowed(USPS) = false with allowlist entry usps")
	}
	if policy.CarrierAllowed("UPS") {
		t.Fatal("CarrierAllowed(UPS) = true, want false")
	}
}

func TestCarrierAllowedUnrestricted(t *testing.T) {
	t.Parallel()

	if !Default().CarrierAllowed("Anything") {
		t.Fatal("default policy should allow any carrier")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	t.Parallel()

	policy, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if policy.EscrowHold() != 48*time.Hour {
		t.Fatalf("EscrowHold() = %v, want 48h", policy.EscrowHold())
	}
}
