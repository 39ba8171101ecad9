package models

import "regionsync/pkg/domain"

// Region is one regional deployment with its own store.
type Region struct {
	Name      string
	Residency domain.Residency
	// Central regions aggregate every change that originates outside the EU.
	Central bool
	// Countries served by this region, used for exposure-scoped types.
	Countries []string
}

// Serves reports whether the region serves any of the given countries.
func (r Region) Serves(countries []string) bool {
	for _, c := range countries {
		for _, own := range r.Countries {
			if c == own {
				return true
			}
		}
	}
	return false
}
