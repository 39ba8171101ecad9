package domain

import (
	"fmt"
	"strings"
)

// Residency is the legal region a row's data is anchored to.
type Residency string

const (
	ResidencyEU    Residency = "EU"
	ResidencyNonEU Residency = "NonEU"
)

// ParseResidency accepts the canonical names case-insensitively, plus the
// "NON_EU"/"NON-EU" spellings used by older configuration files.
func ParseResidency(s string) (Residency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EU":
		return ResidencyEU, nil
	case "NONEU", "NON_EU", "NON-EU":
		return ResidencyNonEU, nil
	default:
		return "", fmt.Errorf("unknown residency %q", s)
	}
}

func (r Residency) String() string { return string(r) }

// IsEU reports whether r is the EU residency class.
func (r Residency) IsEU() bool { return r == ResidencyEU }
