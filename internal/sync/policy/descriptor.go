package policy

import (
	"fmt"
	"sort"
	"strings"

	dErrors "regionsync/pkg/domain-errors"
	platformstrings "regionsync/pkg/platform/strings"
)

// DataClassification is the sensitivity of an entity type's rows.
type DataClassification string

const (
	ClassificationNonPersonal DataClassification = "NonPersonal"
	ClassificationPersonal    DataClassification = "Personal"
	ClassificationSensitive   DataClassification = "Sensitive"
)

// SyncScope decides which regions an entity type may propagate to.
type SyncScope string

const (
	ScopeEUOnly           SyncScope = "EUOnly"
	ScopeGlobalSanitized  SyncScope = "GlobalSanitized"
	ScopeScopedByExposure SyncScope = "ScopedByExposure"
)

// LegalBasis is the GDPR Art. 6 basis under which the rows are processed.
type LegalBasis string

const (
	LegalBasisNone                LegalBasis = "None"
	LegalBasisConsent             LegalBasis = "Consent"
	LegalBasisContract            LegalBasis = "Contract"
	LegalBasisLegalObligation     LegalBasis = "LegalObligation"
	LegalBasisVitalInterests      LegalBasis = "VitalInterests"
	LegalBasisPublicTask          LegalBasis = "PublicTask"
	LegalBasisLegitimateInterests LegalBasis = "LegitimateInterests"
)

var validClassifications = map[DataClassification]bool{
	ClassificationNonPersonal: true,
	ClassificationPersonal:    true,
	ClassificationSensitive:   true,
}

var validScopes = map[SyncScope]bool{
	ScopeEUOnly:           true,
	ScopeGlobalSanitized:  true,
	ScopeScopedByExposure: true,
}

var validLegalBases = map[LegalBasis]bool{
	LegalBasisNone:                true,
	LegalBasisConsent:             true,
	LegalBasisContract:            true,
	LegalBasisLegalObligation:     true,
	LegalBasisVitalInterests:      true,
	LegalBasisPublicTask:          true,
	LegalBasisLegitimateInterests: true,
}

func (c DataClassification) IsValid() bool { return validClassifications[c] }
func (s SyncScope) IsValid() bool          { return validScopes[s] }
func (b LegalBasis) IsValid() bool         { return validLegalBases[b] }

// Descriptor is the static sync policy of one entity type.
type Descriptor struct {
	Name                              string
	TableName                         string
	DataClassification                DataClassification
	SyncScope                         SyncScope
	LegalBasis                        LegalBasis
	LegalBasisRef                     string
	ProcessingPurpose                 string
	RequiresSanitizationForGlobalSync bool
	AllowSanitizationOverrideConsent  bool
	DependsOn                         []string
	IsEnabled                         bool
	Notes                             string
}

// Table returns the storage table, falling back to the type name.
func (d Descriptor) Table() string {
	if d.TableName != "" {
		return d.TableName
	}
	return d.Name
}

// Validate checks the enumerated fields and the name.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return dErrors.New(dErrors.CodeConfiguration, "entity type name is required")
	}
	if !d.DataClassification.IsValid() {
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("%s: invalid data classification %q", d.Name, d.DataClassification))
	}
	if !d.SyncScope.IsValid() {
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("%s: invalid sync scope %q", d.Name, d.SyncScope))
	}
	if d.LegalBasis == "" {
		return nil
	}
	if !d.LegalBasis.IsValid() {
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("%s: invalid legal basis %q", d.Name, d.LegalBasis))
	}
	return nil
}

func (d Descriptor) clone() Descriptor {
	d.DependsOn = append([]string(nil), d.DependsOn...)
	return d
}

// ParseDependsOn splits a comma separated dependency list, trimming blanks
// and dropping duplicates. The result is sorted.
func ParseDependsOn(s string) []string {
	out := platformstrings.SplitList(s)
	sort.Strings(out)
	return out
}

// FormatDependsOn is the inverse of ParseDependsOn.
func FormatDependsOn(deps []string) string {
	return strings.Join(deps, ",")
}
