package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regionsync/internal/sync/graph"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/sentinel"
)

func descriptor(name string, deps ...string) Descriptor {
	return Descriptor{
		Name:               name,
		DataClassification: ClassificationPersonal,
		SyncScope:          ScopeEUOnly,
		LegalBasis:         LegalBasisConsent,
		DependsOn:          deps,
		IsEnabled:          true,
	}
}

func TestNewRegistry_DefaultConfigurations(t *testing.T) {
	r, err := NewRegistry(DefaultConfigurations())
	require.NoError(t, err)

	order := r.Order()
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	for _, d := range r.Enabled() {
		for _, dep := range d.DependsOn {
			assert.Less(t, pos[dep], pos[d.Name], "%s before %s", dep, d.Name)
		}
	}
	assert.Equal(t, order[len(order)-1], r.DeleteOrder()[0])
}

func TestNewRegistry_RecruitingOrder(t *testing.T) {
	r, err := NewRegistry([]Descriptor{
		descriptor("JobApplication", "Candidate", "JobPost"),
		descriptor("Candidate"),
		descriptor("JobPost"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Candidate", "JobPost", "JobApplication"}, r.Order())
	assert.Equal(t, []string{"JobApplication", "JobPost", "Candidate"}, r.DeleteOrder())
	assert.Equal(t, []string{"JobApplication"}, r.DependentsOf("Candidate"))
	assert.Equal(t, 2, r.Rank("JobApplication"))
}

func TestNewRegistry_ConfigurationErrors(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		_, err := NewRegistry([]Descriptor{descriptor("A", "B"), descriptor("B", "A")})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
		assert.True(t, errors.Is(err, graph.ErrCycleDetected))
	})

	t.Run("unknown dependency", func(t *testing.T) {
		_, err := NewRegistry([]Descriptor{descriptor("A", "Ghost")})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
		assert.ErrorIs(t, err, graph.ErrUnknownDependency)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewRegistry([]Descriptor{descriptor("A"), descriptor("A")})
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("invalid scope", func(t *testing.T) {
		d := descriptor("A")
		d.SyncScope = "Everywhere"
		_, err := NewRegistry([]Descriptor{d})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestNewRegistry_DisabledDependencyIgnoredForOrdering(t *testing.T) {
	parent := descriptor("Parent")
	parent.IsEnabled = false
	r, err := NewRegistry([]Descriptor{parent, descriptor("Child", "Parent")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Child"}, r.Order())
	d, err := r.Get("Parent")
	require.NoError(t, err)
	assert.False(t, d.IsEnabled)
}

func TestRegistry_Get(t *testing.T) {
	r, err := NewRegistry(DefaultConfigurations())
	require.NoError(t, err)

	t.Run("registered", func(t *testing.T) {
		d, err := r.Get("JobApplication")
		require.NoError(t, err)
		assert.Equal(t, []string{"Candidate", "JobPost"}, d.DependsOn)
		assert.Equal(t, "job_applications", d.Table())
	})

	t.Run("unregistered is a configuration error", func(t *testing.T) {
		_, err := r.Get("Unicorn")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("returned descriptors are copies", func(t *testing.T) {
		d, _ := r.Get("JobApplication")
		d.DependsOn[0] = "Mutated"
		again, _ := r.Get("JobApplication")
		assert.Equal(t, "Candidate", again.DependsOn[0])
	})

	t.Run("by table", func(t *testing.T) {
		d, err := r.ByTable("candidates")
		require.NoError(t, err)
		assert.Equal(t, "Candidate", d.Name)
	})
}

func TestParseDependsOn(t *testing.T) {
	assert.Equal(t, []string{"Candidate", "JobPost"}, ParseDependsOn(" JobPost, Candidate ,,JobPost"))
	assert.Empty(t, ParseDependsOn(""))
	assert.Equal(t, "Candidate,JobPost", FormatDependsOn([]string{"Candidate", "JobPost"}))
}

func TestLoadFile(t *testing.T) {
	doc := `
entities:
  - name: Candidate
    tableName: candidates
    dataClassification: Personal
    syncScope: EUOnly
    legalBasis: Consent
    requiresSanitizationForGlobalSync: true
    allowSanitizationOverrideConsent: true
  - name: JobApplication
    dataClassification: Personal
    syncScope: EUOnly
    dependsOn: ["Candidate"]
  - name: Legacy
    dataClassification: NonPersonal
    syncScope: GlobalSanitized
    enabled: false
`
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	descs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, descs, 3)

	assert.True(t, descs[0].RequiresSanitizationForGlobalSync)
	assert.Equal(t, LegalBasisNone, descs[1].LegalBasis)
	assert.True(t, descs[1].IsEnabled)
	assert.False(t, descs[2].IsEnabled)

	r, err := NewRegistry(descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Candidate", "JobApplication"}, r.Order())
}

func TestMarshal_RoundTripsThroughParse(t *testing.T) {
	data, err := Marshal(DefaultConfigurations())
	require.NoError(t, err)

	descs, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigurations(), descs)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}
