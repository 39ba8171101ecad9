//go:build integration

package policy_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"

	"regionsync/internal/sync/policy"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/testutil/containers"
)

type PostgresLoaderSuite struct {
	suite.Suite
	db     *sql.DB
	loader *policy.PostgresLoader
}

func TestPostgresLoaderSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLoaderSuite))
}

func (s *PostgresLoaderSuite) SetupSuite() {
	s.db = containers.GetManager().GetPostgres(s.T()).Database(s.T(), "policies")
	s.loader = policy.NewPostgresLoader(s.db)
}

func (s *PostgresLoaderSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), "TRUNCATE entity_sync_configurations")
	s.Require().NoError(err)
}

func (s *PostgresLoaderSuite) TestSeedThenLoadBuildsRegistry() {
	ctx := context.Background()
	defaults := policy.DefaultConfigurations()
	s.Require().NoError(s.loader.Seed(ctx, defaults))

	loaded, err := s.loader.Load(ctx)
	s.Require().NoError(err)
	s.Len(loaded, len(defaults))

	byName := map[string]policy.Descriptor{}
	for _, d := range loaded {
		byName[d.Name] = d
	}
	for _, want := range defaults {
		got, ok := byName[want.Name]
		s.Require().True(ok, want.Name)
		s.Equal(want.Table(), got.Table())
		s.Equal(want.SyncScope, got.SyncScope)
		s.Equal(want.LegalBasis, got.LegalBasis)
		s.ElementsMatch(want.DependsOn, got.DependsOn)
	}

	registry, err := policy.NewRegistry(loaded)
	s.Require().NoError(err)
	s.NotEmpty(registry.Order())
}

func (s *PostgresLoaderSuite) TestReseedKeepsOperatorDisable() {
	ctx := context.Background()
	s.Require().NoError(s.loader.Seed(ctx, policy.DefaultConfigurations()))
	_, err := s.db.ExecContext(ctx,
		`UPDATE entity_sync_configurations SET is_enabled = FALSE WHERE entity_type_name = 'Comment'`)
	s.Require().NoError(err)

	s.Require().NoError(s.loader.Seed(ctx, policy.DefaultConfigurations()))

	loaded, err := s.loader.Load(ctx)
	s.Require().NoError(err)
	for _, d := range loaded {
		if d.Name == "Comment" {
			s.False(d.IsEnabled)
			return
		}
	}
	s.Fail("Comment descriptor missing")
}

func (s *PostgresLoaderSuite) TestSeedRejectsInvalidDescriptorAtomically() {
	ctx := context.Background()
	bad := policy.DefaultConfigurations()
	bad = append(bad, policy.Descriptor{Name: "Broken", SyncScope: "Everywhere"})

	err := s.loader.Seed(ctx, bad)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))

	loaded, err := s.loader.Load(ctx)
	s.Require().NoError(err)
	s.Empty(loaded)
}
