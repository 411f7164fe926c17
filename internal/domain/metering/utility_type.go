package metering

import (
	"fmt"
	"strings"
)

// UtilityType represents the metered utility a reading belongs to
type UtilityType string

const (
	// UtilityWater tracks water consumption
	UtilityWater UtilityType = "water"

	// UtilityElectricity tracks electricity consumption
	UtilityElectricity UtilityType = "electricity"
)

// String returns the string representation of UtilityType
func (u UtilityType) String() string {
	return string(u)
}

// IsValid returns true if the utility type is valid
func (u UtilityType) IsValid() bool {
	switch u {
	case UtilityWater, UtilityElectricity:
		return true
	}
	return false
}

// Unit returns the measurement unit for this utility
func (u UtilityType) Unit() string {
	switch u {
	case UtilityWater:
		return "m³"
	case UtilityElectricity:
		return "kWh"
	default:
		return "units"
	}
}

// BillType returns the ledger bill type produced by readings of this utility
func (u UtilityType) BillType() string {
	return string(u)
}

// AllUtilityTypes returns every metered utility
func AllUtilityTypes() []UtilityType {
	return []UtilityType{UtilityWater, UtilityElectricity}
}

// ParseUtilityType parses a utility name, case-insensitively
func ParseUtilityType(s string) (UtilityType, error) {
	u := UtilityType(strings.ToLower(strings.TrimSpace(s)))
	if !u.IsValid() {
		return "", fmt.Errorf("invalid utility type: %q", s)
	}
	return u, nil
}
