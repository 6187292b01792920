package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunAllBuildsOneSolveProblemPerFactory(t *testing.T) {
	factories := []ProblemFactory{
		func() Definition { return &stubDefinition{name: "squares"} },
		func() Definition { return &stubDefinition{name: "cubes"} },
	}
	ra, err := NewRunAll("/sim", "/out", factories, "", false)
	require.NoError(t, err)
	assert.Len(t, ra.Depends(), 2)
}

// -m/--match filters by Simulation name, not by the problem's own
// name: a problem is kept whenever at least one of its cases matches,
// even if the problem's own name does not (matching
// test_automation.py's `-m '*no_up*'` run against EllipticalDrop,
// whose name never matches but whose "no_update_h" case does).
func TestNewRunAllKeepsProblemWhenAnyCaseMatchesRegardlessOfProblemName(t *testing.T) {
	factories := []ProblemFactory{
		func() Definition {
			return &stubDefinition{name: "elliptical_drop", caseCmd: "echo hi", caseNames: []string{"update_h", "no_update_h"}}
		},
		func() Definition {
			return &stubDefinition{name: "cubes", caseCmd: "echo hi", caseNames: []string{"case1"}}
		},
	}
	ra, err := NewRunAll("/sim", "/out", factories, "*no_up*", false)
	require.NoError(t, err)
	require.Len(t, ra.Depends(), 1)

	sp := ra.Depends()[0].(*SolveProblem)
	assert.Equal(t, "elliptical_drop", sp.Problem.Name())
	require.Len(t, sp.Problem.Cases, 1)
	assert.Equal(t, "no_update_h", sp.Problem.Cases[0].Name)
}

// A problem whose Setup never names any Simulations (e.g. one that
// only declares Requires) has nothing for -m to filter, so it is kept
// unconditionally rather than dropped for lacking a matching case.
func TestNewRunAllKeepsProblemsWithNoNamedCasesRegardlessOfMatch(t *testing.T) {
	factories := []ProblemFactory{
		func() Definition { return &stubDefinition{name: "squares"} },
	}
	ra, err := NewRunAll("/sim", "/out", factories, "nothing-matches-*", false)
	require.NoError(t, err)
	require.Len(t, ra.Depends(), 1)
}

// A problem whose cases exist but none match is dropped entirely.
func TestNewRunAllDropsProblemWhenNoCaseMatches(t *testing.T) {
	factories := []ProblemFactory{
		func() Definition { return &stubDefinition{name: "squares", caseCmd: "echo hi", caseNames: []string{"a", "b"}} },
	}
	ra, err := NewRunAll("/sim", "/out", factories, "z*", false)
	require.NoError(t, err)
	assert.Empty(t, ra.Depends())
}

func TestRunAllProblemNamesIsSortedAndMatchIndependent(t *testing.T) {
	factories := []ProblemFactory{
		func() Definition { return &stubDefinition{name: "squares"} },
		func() Definition { return &stubDefinition{name: "cubes"} },
	}
	ra, err := NewRunAll("/sim", "/out", factories, "squ*", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"cubes", "squares"}, ra.ProblemNames())
}

func TestRunAllCompleteAggregatesChildren(t *testing.T) {
	factories := []ProblemFactory{
		func() Definition { return &stubDefinition{name: "squares"} },
	}
	ra, err := NewRunAll("/sim", "/out", factories, "", false)
	require.NoError(t, err)

	assert.False(t, ra.Complete())
	for _, child := range ra.Depends() {
		sp := child.(*SolveProblem)
		require.NoError(t, sp.Run(nil))
	}
	assert.True(t, ra.Complete())
}

func TestRunAllRunIsNoOp(t *testing.T) {
	ra, err := NewRunAll("/sim", "/out", nil, "", false)
	require.NoError(t, err)
	assert.NoError(t, ra.Run(nil))
}
