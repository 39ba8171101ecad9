package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"regionsync/internal/sync/models"
	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 30 * time.Second
	defaultMaxDelay    = 15 * time.Minute
	defaultDeferDelay  = time.Second
)

// Config is the per-deployment tuning of the orchestrator.
type Config struct {
	Regions []models.Region
	// MaxAttempts is the delivery attempt at which a transient failure is
	// dead-lettered instead of requeued.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// DeferDelay is how long a delete waits while upserts for the same key are
	// still in the retry path.
	DeferDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.DeferDelay <= 0 {
		c.DeferDelay = defaultDeferDelay
	}
	regions := append([]models.Region(nil), c.Regions...)
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	c.Regions = regions
	return c
}

// Validate checks the region topology.
func (c Config) Validate() error {
	if len(c.Regions) == 0 {
		return dErrors.New(dErrors.CodeConfiguration, "at least one region is required")
	}
	seen := make(map[string]struct{}, len(c.Regions))
	for _, r := range c.Regions {
		if r.Name == "" {
			return dErrors.New(dErrors.CodeConfiguration, "region name is required")
		}
		if _, dup := seen[r.Name]; dup {
			return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("duplicate region %q", r.Name))
		}
		seen[r.Name] = struct{}{}
		if r.Residency != domain.ResidencyEU && r.Residency != domain.ResidencyNonEU {
			return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("region %q has invalid residency %q", r.Name, r.Residency))
		}
	}
	return nil
}

// Backoff returns the delay before delivery attempt+1 after a transient
// failure at attempt: BaseDelay doubled per prior attempt, capped at MaxDelay.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= max/2 {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}
