// Package exposure resolves country exposure sets: the countries a
// ScopedByExposure row (a job post, typically) is published to. Sets live in
// the source region's database.
package exposure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/sqlerr"
)

// Lookup returns the countries of an exposure set. An unknown set has no
// countries.
type Lookup interface {
	Countries(ctx context.Context, region, setID string) ([]string, error)
}

// Static is a fixed in-memory lookup keyed by set id, shared by all regions.
type Static map[string][]string

func (s Static) Countries(_ context.Context, _ string, setID string) ([]string, error) {
	return normalize(s[setID]), nil
}

// Postgres reads country_exposure_sets from each region's database.
type Postgres struct {
	dbs map[string]*sql.DB
}

func NewPostgres(dbs map[string]*sql.DB) *Postgres {
	return &Postgres{dbs: dbs}
}

func (p *Postgres) Countries(ctx context.Context, region, setID string) ([]string, error) {
	db, ok := p.dbs[region]
	if !ok {
		return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("no database for region %q", region))
	}
	var codes []string
	err := db.QueryRowContext(ctx,
		`SELECT country_codes FROM country_exposure_sets WHERE id = $1`, setID,
	).Scan(pq.Array(&codes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlerr.Translate("load exposure set", err)
	}
	return normalize(codes), nil
}

// Cached memoizes a Lookup for ttl. Concurrent misses for the same set share
// one load.
type Cached struct {
	next  Lookup
	cache *gocache.Cache
	group singleflight.Group
}

func NewCached(next Lookup, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Countries(ctx context.Context, region, setID string) ([]string, error) {
	key := region + "/" + setID
	if v, ok := c.cache.Get(key); ok {
		return v.([]string), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		codes, err := c.next.Countries(ctx, region, setID)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(key, codes)
		return codes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate drops a cached set, e.g. after its countries changed.
func (c *Cached) Invalidate(region, setID string) {
	c.cache.Delete(region + "/" + setID)
}

func normalize(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
