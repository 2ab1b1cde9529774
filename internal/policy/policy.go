package policy

// Package policy loads the per-deployment fulfillment policy file. The
// escrow hold and return window are configuration, not literals, so test
// deployments can shorten them.

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Policy struct {
	Escrow   EscrowPolicy   `yaml:"escrow"`
	Returns  ReturnPolicy   `yaml:"returns"`
	Shipping ShippingPolicy `yaml:"shipping"`
}

type EscrowPolicy struct {
	HoldHours int `yaml:"hold_hours"`
}

type ReturnPolicy struct {
	WindowDays int `yaml:"window_days"`
}

type ShippingPolicy struct {
	// Carriers restricts which carriers creators may ship with.
	// Empty means any carrier is accepted.
	Carriers []string `yaml:"carriers"`
}

// Default returns the production policy: 48 hour escrow hold, 14 day
// return window, no carrier restriction.
func Default() Policy {
	return Policy{
		Escrow:  EscrowPolicy{HoldHours: 48},
		Returns: ReturnPolicy{WindowDays: 14},
	}
}

// Load reads and validates a policy file. An empty path yields Default.
func Load(path string) (Policy, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	policy, err := NewParser().Parse(content)
	if err != nil {
		return Policy{}, err
	}
	if err := NewValidator().Validate(policy); err != nil {
		return Policy{}, err
	}
	return *policy, nil
}

func (p Policy) EscrowHold() time.Duration {
	return time.Duration(p.Escrow.HoldHours) * time.Hour
}

func (p Policy) ReturnWindow() time.Duration {
	return time.Duration(p.Returns.WindowDays) * 24 * time.Hour
}

// CarrierAllowed matches the carrier against the allowlist ignoring case
// and separators, so a policy entry "fedex" admits the display name "FedEx".
func (p Policy) CarrierAllowed(carrier string) bool {
	if len(p.Shipping.Carriers) == 0 {
		return true
	}
	key := carrierKey(carrier)
	for _, allowed := range p.Shipping.Carriers {
		if carrierKey(allowed) == key {
			return true
		}
	}
	return false
}

func carrierKey(carrier string) string {
	key := strings.ToLower(strings.TrimSpace(carrier))
	for _, sep := range []string{" ", "-", "_"} {
		key = strings.ReplaceAll(key, sep, "")
	}
	return key
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*Policy, error) {
	policy := Default()
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &policy, nil
}

func (p *Parser) ParseFromString(content string) (*Policy, error) {
	return p.Parse([]byte(content))
}
