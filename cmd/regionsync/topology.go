package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"regionsync/internal/platform/config"
	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/internal/sync/residency"
	"regionsync/pkg/domain"
)

const residencyAuto = "auto"

func residencyResolver(t config.Topology) *residency.Resolver {
	if len(t.EUCountries) > 0 {
		return residency.New(t.EUCountries...)
	}
	return residency.Default()
}

// regionsFromTopology converts the file layout. A residency of "auto" is
// derived from the region's countries.
func regionsFromTopology(t config.Topology, res *residency.Resolver) ([]models.Region, error) {
	out := make([]models.Region, 0, len(t.Regions))
	for _, rc := range t.Regions {
		countries := make([]string, 0, len(rc.Countries))
		for _, c := range rc.Countries {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				countries = append(countries, c)
			}
		}
		sort.Strings(countries)

		var (
			r   domain.Residency
			err error
		)
		if strings.EqualFold(rc.Residency, residencyAuto) {
			r, err = res.RegionResidency(countries)
		} else {
			r, err = domain.ParseResidency(rc.Residency)
		}
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", rc.Name, err)
		}
		out = append(out, models.Region{
			Name:      rc.Name,
			Residency: r,
			Central:   rc.Central,
			Countries: countries,
		})
	}
	return out, nil
}

// loadPolicies builds the registry from the configured source. The postgres
// source reads the configuration table of db.
func loadPolicies(ctx context.Context, cfg config.Config, db *sql.DB) (*policy.Registry, error) {
	var (
		descriptors []policy.Descriptor
		err         error
	)
	switch cfg.Sync.PolicySource {
	case "file":
		descriptors, err = policy.LoadFile(cfg.TopologyFile)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("policy source postgres needs a region database")
		}
		descriptors, err = policy.NewPostgresLoader(db).Load(ctx)
	default:
		descriptors = policy.DefaultConfigurations()
	}
	if err != nil {
		return nil, err
	}
	return policy.NewRegistry(descriptors)
}

// primaryRegion is the database holding operator state: the local region
// when configured, otherwise the first region by name.
func primaryRegion(cfg config.Config, dbs map[string]*sql.DB) (string, *sql.DB) {
	if db, ok := dbs[cfg.LocalRegion]; ok {
		return cfg.LocalRegion, db
	}
	names := make([]string, 0, len(dbs))
	for name := range dbs {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return names[0], dbs[names[0]]
}
