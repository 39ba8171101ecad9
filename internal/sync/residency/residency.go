// Package residency maps ISO 3166-1 alpha-2 country codes to a residency class.
package residency

import (
	"fmt"
	"sort"
	"strings"

	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
)

// DefaultEEA is the EU-27 plus the EEA members that apply GDPR.
var DefaultEEA = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
	"IS", "LI", "NO",
}

// Resolver classifies countries. It is immutable once constructed.
type Resolver struct {
	eu map[string]struct{}
}

// New builds a resolver over the given EU/EEA country codes.
func New(codes ...string) *Resolver {
	eu := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if n := normalize(c); n != "" {
			eu[n] = struct{}{}
		}
	}
	return &Resolver{eu: eu}
}

// Default builds a resolver over DefaultEEA.
func Default() *Resolver {
	return New(DefaultEEA...)
}

// ResidencyForCountry returns EU for a configured country and NonEU otherwise.
// Empty and unrecognised codes resolve to NonEU.
//
// TODO: an unknown code currently classifies as NonEU, which is the less
// protective side; switch to an explicit error once legal signs off.
func (r *Resolver) ResidencyForCountry(code string) domain.Residency {
	if _, ok := r.eu[normalize(code)]; ok {
		return domain.ResidencyEU
	}
	return domain.ResidencyNonEU
}

// RegionResidency classifies a region from the countries it serves. Every
// country must fall on the same side.
func (r *Resolver) RegionResidency(countries []string) (domain.Residency, error) {
	if len(countries) == 0 {
		return "", dErrors.New(dErrors.CodeConfiguration, "cannot derive residency without countries")
	}
	first := r.ResidencyForCountry(countries[0])
	for _, c := range countries[1:] {
		if got := r.ResidencyForCountry(c); got != first {
			return "", dErrors.New(dErrors.CodeConfiguration,
				fmt.Sprintf("countries %s and %s have different residency", normalize(countries[0]), normalize(c)))
		}
	}
	return first, nil
}

// Countries returns the configured EU/EEA codes, sorted.
func (r *Resolver) Countries() []string {
	out := make([]string, 0, len(r.eu))
	for c := range r.eu {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
