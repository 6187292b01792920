// Package automanutil collects the small helpers a Problem.Run
// post-processing step reaches for once its Simulations are done:
// picking out the right subset of cases, building parameter sweeps,
// and turning a parameter set into a predictable output path.
package automanutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/automan/pkg/task"
)

// FilterCases returns the Simulations among cases whose Params match
// every key/value pair in params exactly (params not present on a case
// disqualify it). Use FilterCasesFunc instead for anything more elaborate
// than equality.
func FilterCases(cases []*task.Simulation, params map[string]interface{}) []*task.Simulation {
	var out []*task.Simulation
	for _, c := range cases {
		if caseMatches(c, params) {
			out = append(out, c)
		}
	}
	return out
}

// FilterCasesFunc returns the Simulations among cases for which
// predicate reports true, the Go analogue of filter_cases'
// callable-predicate form.
func FilterCasesFunc(cases []*task.Simulation, predicate func(*task.Simulation) bool) []*task.Simulation {
	var out []*task.Simulation
	for _, c := range cases {
		if predicate(c) {
			out = append(out, c)
		}
	}
	return out
}

func caseMatches(c *task.Simulation, params map[string]interface{}) bool {
	values := make(map[string]interface{}, len(c.Params))
	for _, p := range c.Params {
		values[p.Key] = p.Value
	}
	for k, want := range params {
		got, ok := values[k]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// FilterByName returns the Simulations among cases whose Name is in
// names, ordered to match the order names were given in (not the
// order the cases appear in) — handy for plotting a fixed, deliberate
// ordering of curves regardless of how Setup built the case list.
func FilterByName(cases []*task.Simulation, names ...string) []*task.Simulation {
	order := make(map[string]int, len(names))
	for i, n := range names {
		order[n] = i
	}
	var out []*task.Simulation
	for _, c := range cases {
		if _, ok := order[c.Name]; ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return order[out[i].Name] < order[out[j].Name]
	})
	return out
}

// Mdict (short for "multi-dict") expands a map of option name to a
// slice of candidate values into the full cartesian product of
// option sets — one map per combination — the building block
// Dprod uses to sweep several parameters at once.
func Mdict(options map[string][]interface{}) []map[string]interface{} {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		values := options[k]
		next := make([]map[string]interface{}, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				nc := make(map[string]interface{}, len(combo)+1)
				for ck, cv := range combo {
					nc[ck] = cv
				}
				nc[k] = v
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

// Dprod is Mdict with its result order flattened into a deterministic
// sequence of key/value pairs sorted by key, suitable for feeding
// straight into Opts2Path or a Simulation's parameter list.
func Dprod(options map[string][]interface{}) [][]KV {
	var out [][]KV
	for _, combo := range Mdict(options) {
		keys := make([]string, 0, len(combo))
		for k := range combo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		row := make([]KV, 0, len(keys))
		for _, k := range keys {
			row = append(row, KV{Key: k, Value: combo[k]})
		}
		out = append(out, row)
	}
	return out
}

// KV is a single parameter key/value pair, used by Dprod/Opts2Path.
type KV struct {
	Key   string
	Value interface{}
}

// Opts2Path renders a set of key/value pairs into a filesystem-safe
// directory name, e.g. [{n,4},{dt,0.01}] -> "n_4_dt_0.01", the Go
// analogue of building a per-case output directory name from its
// sweep parameters.
func Opts2Path(kvs []KV) string {
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		v := fmt.Sprintf("%v", kv.Value)
		v = strings.ReplaceAll(v, string('/'), "_")
		parts = append(parts, fmt.Sprintf("%s_%s", kv.Key, v))
	}
	return strings.Join(parts, "_")
}

// CompareRuns calls plot against the given label-bearing Simulations
// in order, cycling through a small fixed set of (color, linestyle)
// keyword pairs so repeated calls across a family of plots stay
// visually distinguishable without the caller managing style state
// itself. If exact is non-nil, it is called first (with the first
// style in the cycle) to plot a reference/exact solution.
func CompareRuns(sims []*task.Simulation, labelKeys []string, plot func(sim *task.Simulation, label string, style Style), exact func(style Style)) {
	styles := styleCycle()
	if exact != nil {
		exact(styles())
	}
	for _, s := range sims {
		plot(s, s.Labels(labelKeys), styles())
	}
}

// Style is one (color, linestyle) pair from the cycle CompareRuns
// hands to each plot call.
type Style struct {
	Color     string
	LineStyle string
}

func styleCycle() func() Style {
	colors := []string{"k", "b", "g", "r"}
	dashes := []string{"-", "--", "-.", ":"}
	i := 0
	return func() Style {
		c := colors[(i/len(dashes))%len(colors)]
		d := dashes[i%len(dashes)]
		i++
		return Style{Color: c, LineStyle: d}
	}
}
