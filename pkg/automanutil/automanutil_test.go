package automanutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/automan/pkg/task"
	"github.com/cuemby/automan/pkg/types"
)

func sim(name string, params ...types.Param) *task.Simulation {
	return task.NewSimulation("/out/"+name, "run", params...)
}

func TestFilterCasesMatchesExactly(t *testing.T) {
	cases := []*task.Simulation{
		sim("a", types.Param{Key: "n", Value: 4}),
		sim("b", types.Param{Key: "n", Value: 8}),
		sim("c", types.Param{Key: "n", Value: 4}),
	}
	got := FilterCases(cases, map[string]interface{}{"n": 4})
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
}

func TestFilterCasesFuncUsesPredicate(t *testing.T) {
	cases := []*task.Simulation{sim("a"), sim("b")}
	got := FilterCasesFunc(cases, func(s *task.Simulation) bool { return s.Name == "b" })
	assert.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Name)
}

func TestFilterByNamePreservesRequestedOrder(t *testing.T) {
	cases := []*task.Simulation{sim("a"), sim("b"), sim("c")}
	got := FilterByName(cases, "c", "a")
	assert.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, "a", got[1].Name)
}

func TestMdictComputesCartesianProduct(t *testing.T) {
	combos := Mdict(map[string][]interface{}{
		"n":  {1, 2},
		"dt": {0.1},
	})
	assert.Len(t, combos, 2)
	for _, c := range combos {
		assert.Equal(t, 0.1, c["dt"])
	}
}

func TestDprodIsKeySortedAndFlattened(t *testing.T) {
	rows := Dprod(map[string][]interface{}{
		"n":  {4},
		"dt": {0.01},
	})
	assert.Len(t, rows, 1)
	assert.Equal(t, []KV{{Key: "dt", Value: 0.01}, {Key: "n", Value: 4}}, rows[0])
}

func TestOpts2PathRendersUnderscoreSeparated(t *testing.T) {
	path := Opts2Path([]KV{{Key: "n", Value: 4}, {Key: "dt", Value: 0.01}})
	assert.Equal(t, "n_4_dt_0.01", path)
}

func TestOpts2PathEscapesSlashes(t *testing.T) {
	path := Opts2Path([]KV{{Key: "path", Value: "a/b"}})
	assert.Equal(t, "path_a_b", path)
}

func TestCompareRunsCyclesStylesAndCallsExactFirst(t *testing.T) {
	sims := []*task.Simulation{
		sim("a", types.Param{Key: "n", Value: 1}),
		sim("b", types.Param{Key: "n", Value: 2}),
	}

	var calls []string
	CompareRuns(sims, []string{"n"},
		func(s *task.Simulation, label string, style Style) {
			calls = append(calls, "plot:"+label+":"+style.Color+style.LineStyle)
		},
		func(style Style) {
			calls = append(calls, "exact:"+style.Color+style.LineStyle)
		},
	)

	assert.Len(t, calls, 3)
	assert.Equal(t, "exact:k-", calls[0])
	assert.Equal(t, "plot:n=1:k--", calls[1])
	assert.Equal(t, "plot:n=2:k-.", calls[2])
}
