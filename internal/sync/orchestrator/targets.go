package orchestrator

import (
	"context"

	"regionsync/internal/sync/eligibility"
	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/pkg/domain"
)

// Skip reasons beyond the eligibility ones.
const (
	skipOutOfScope     = "out_of_scope"
	skipAlreadyApplied = "already_applied"
	skipAlreadyAbsent  = "already_absent"
)

// planUpsert splits the topology into eligible targets and skipped ones for a
// row about to be propagated. The source region is never a target.
func (o *Orchestrator) planUpsert(ctx context.Context, desc policy.Descriptor, msg models.Message, row *models.Record) ([]models.Region, []models.SkippedTarget, error) {
	source := o.regions[msg.SourceRegion]
	fromNonEU := source.Residency == domain.ResidencyNonEU

	var (
		exposed    []string
		exposedSet bool
		targets    []models.Region
		skipped    []models.SkippedTarget
	)
	for _, region := range o.cfg.Regions {
		if region.Name == msg.SourceRegion {
			continue
		}

		inScope := false
		outReason := skipOutOfScope
		switch desc.SyncScope {
		case policy.ScopeEUOnly:
			inScope = region.Residency == domain.ResidencyEU
		case policy.ScopeGlobalSanitized:
			inScope = true
		case policy.ScopeScopedByExposure:
			if !exposedSet {
				countries, err := o.exposedCountries(ctx, msg.SourceRegion, row)
				if err != nil {
					return nil, nil, err
				}
				exposed, exposedSet = countries, true
			}
			inScope = region.Serves(exposed)
			outReason = string(eligibility.ReasonNoExposure)
		}

		central := region.Central && fromNonEU
		if !inScope && !central {
			skipped = append(skipped, models.SkippedTarget{Region: region.Name, Reason: outReason})
			continue
		}

		ok, reason := true, eligibility.ReasonNone
		if desc.SyncScope == policy.ScopeGlobalSanitized && !central {
			ok, reason = eligibility.Evaluate(row, region.Residency,
				desc.RequiresSanitizationForGlobalSync, desc.AllowSanitizationOverrideConsent)
		} else if !eligibility.CanSyncToRegion(row, region.Residency) {
			ok, reason = false, eligibility.ReasonResidency
		}
		if !ok {
			skipped = append(skipped, models.SkippedTarget{Region: region.Name, Reason: string(reason)})
			continue
		}
		targets = append(targets, region)
	}
	return targets, skipped, nil
}

// planDelete returns every region that could hold a copy of the row: the
// scope's universe plus central regions for NonEU sources, minus the source.
// Exposure of a deleted row is unknown, so exposure-scoped types fan out to
// every region.
func (o *Orchestrator) planDelete(desc policy.Descriptor, msg models.Message) []models.Region {
	source := o.regions[msg.SourceRegion]
	fromNonEU := source.Residency == domain.ResidencyNonEU

	var targets []models.Region
	for _, region := range o.cfg.Regions {
		if region.Name == msg.SourceRegion {
			continue
		}
		inUniverse := true
		if desc.SyncScope == policy.ScopeEUOnly {
			inUniverse = region.Residency == domain.ResidencyEU || (region.Central && fromNonEU)
		}
		if inUniverse {
			targets = append(targets, region)
		}
	}
	return targets
}

func (o *Orchestrator) exposedCountries(ctx context.Context, sourceRegion string, row *models.Record) ([]string, error) {
	setID := row.CountryExposureSetID
	if setID == "" || o.exposure == nil {
		return nil, nil
	}
	return o.exposure.Countries(ctx, sourceRegion, setID)
}
