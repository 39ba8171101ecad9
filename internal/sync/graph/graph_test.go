package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrder_RecruitingTypes(t *testing.T) {
	order, err := ResolveOrder([]Node{
		{Name: "JobApplication", DependsOn: []string{"Candidate", "JobPost"}},
		{Name: "Candidate"},
		{Name: "JobPost"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Candidate", "JobPost", "JobApplication"}, order)
	assert.Equal(t, []string{"JobApplication", "JobPost", "Candidate"}, Reverse(order))
}

func TestResolveOrder_TwoCycle(t *testing.T) {
	_, err := ResolveOrder([]Node{
		{Name: "A", DependsOn: []string{"B"}},
		{Name: "B", DependsOn: []string{"A"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleDetected))

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, []string{"A", "B"}, cycle.Node)
}

func TestResolveOrder_SelfLoop(t *testing.T) {
	_, err := ResolveOrder([]Node{{Name: "A", DependsOn: []string{"A"}}})
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestResolveOrder_UnknownDependency(t *testing.T) {
	_, err := ResolveOrder([]Node{{Name: "A", DependsOn: []string{"Ghost"}}})
	assert.ErrorIs(t, err, ErrUnknownDependency)
}

func TestResolveOrder_Empty(t *testing.T) {
	order, err := ResolveOrder(nil)
	require.NoError(t, err)
	assert.Empty(t, order)
}

// TestResolveOrder_RandomDAGProperty checks that for any acyclic graph every
// edge u->v places v before u, and every node appears exactly once.
//
// Justification: ordering is the property the whole propagation pipeline
// relies on; example-based tests cannot cover the shape space.
func TestResolveOrder_RandomDAGProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(20)
		nodes := make([]Node, n)
		for i := range nodes {
			nodes[i].Name = fmt.Sprintf("T%02d", i)
			// Edges only point at lower indices, which keeps the graph acyclic.
			for j := 0; j < i; j++ {
				if rng.Float64() < 0.3 {
					nodes[i].DependsOn = append(nodes[i].DependsOn, fmt.Sprintf("T%02d", j))
				}
			}
		}
		rng.Shuffle(len(nodes), func(a, b int) { nodes[a], nodes[b] = nodes[b], nodes[a] })

		order, err := ResolveOrder(nodes)
		require.NoError(t, err)
		require.Len(t, order, n)

		pos := make(map[string]int, n)
		for i, name := range order {
			_, dup := pos[name]
			require.False(t, dup, "node %s emitted twice", name)
			pos[name] = i
		}
		for _, node := range nodes {
			for _, dep := range node.DependsOn {
				assert.Less(t, pos[dep], pos[node.Name], "%s must precede %s", dep, node.Name)
			}
		}
	}
}

func TestResolveOrder_Deterministic(t *testing.T) {
	nodes := []Node{
		{Name: "Comment", DependsOn: []string{"JobPost", "Candidate"}},
		{Name: "Candidate"},
		{Name: "JobPost", DependsOn: []string{"Country"}},
		{Name: "Country"},
	}
	first, err := ResolveOrder(nodes)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ResolveOrder(nodes)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"Candidate", "Country", "JobPost", "Comment"}, first)
}
