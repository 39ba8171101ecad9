// Package eligibility holds the two residency predicates that decide whether a
// row may leave its region. Both are pure functions of their inputs.
package eligibility

import "regionsync/pkg/domain"

// CanSyncToRegion reports whether row may land in a region of the target
// residency. EU targets accept anything. A NonEU target accepts an EU-resident
// row only when it is sanitized or the subject consented to the override.
func CanSyncToRegion(row domain.GdprSyncable, target domain.Residency) bool {
	if target == domain.ResidencyEU {
		return true
	}
	m := row.Metadata()
	if m.DataResidency != domain.ResidencyEU {
		return true
	}
	return m.Sanitized() || m.HasOverrideConsent()
}

// IsEligibleForGlobalSync reports whether row satisfies its entity type's
// sanitization requirement for global propagation.
func IsEligibleForGlobalSync(row domain.GdprSyncable, requiresSanitization, allowOverrideConsent bool) bool {
	if !requiresSanitization {
		return true
	}
	m := row.Metadata()
	if m.Sanitized() {
		return true
	}
	return allowOverrideConsent && m.HasOverrideConsent()
}

// Reason names why a target was rejected, for logs and metrics.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonResidency    Reason = "residency"
	ReasonSanitization Reason = "sanitization_required"
	ReasonNoExposure   Reason = "not_exposed"
)

// Evaluate combines both predicates for a target that is subject to the
// global sanitization rule. It returns the first failing reason.
func Evaluate(row domain.GdprSyncable, target domain.Residency, requiresSanitization, allowOverrideConsent bool) (bool, Reason) {
	if !IsEligibleForGlobalSync(row, requiresSanitization, allowOverrideConsent) {
		return false, ReasonSanitization
	}
	if !CanSyncToRegion(row, target) {
		return false, ReasonResidency
	}
	return true, ReasonNone
}
