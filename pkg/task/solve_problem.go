package task

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cuemby/automan/pkg/scheduler"
)

// SolveProblem adapts a Definition into a Task: its dependencies are
// the problem's Cases and Requires (computed once, by Setup), and
// running it means calling the Definition's Run once every dependency
// is complete. This is the Go analogue of automan.automation's
// SolveProblem Task wrapper around a Problem instance.
type SolveProblem struct {
	Problem    *Problem
	Definition Definition

	mu       sync.Mutex
	deps     []Task
	ran      bool
	errored  bool
	hadCases bool
}

// NewSolveProblem builds the problem's bookkeeping, calls
// Definition.Setup to populate it, applies an optional name filter
// (glob against each Simulation's Name), and flattens Cases/Requires
// into the dependency list TaskRunner will drive.
func NewSolveProblem(def Definition, simRoot, outRoot string) (*SolveProblem, error) {
	return newSolveProblem(def, simRoot, outRoot, "")
}

// NewSolveProblemMatching is NewSolveProblem with a case-name glob
// forwarded from a RunAll's -m/--match flag.
func NewSolveProblemMatching(def Definition, simRoot, outRoot, match string) (*SolveProblem, error) {
	return newSolveProblem(def, simRoot, outRoot, match)
}

func newSolveProblem(def Definition, simRoot, outRoot, match string) (*SolveProblem, error) {
	p := NewProblem(simRoot, outRoot, def.Name())
	p.Match = match
	def.Setup(p)
	hadCases := len(p.Cases) > 0

	if match != "" {
		matched, err := filterByMatch(p.Cases, match)
		if err != nil {
			return nil, err
		}
		p.Cases = matched
	}

	deps := make([]Task, 0, len(p.Cases)+len(p.Requires))
	for _, c := range p.Cases {
		deps = append(deps, c)
	}
	for _, r := range p.Requires {
		if r.Task == nil {
			return nil, errBadRequirement(r.Name)
		}
		deps = append(deps, r.Task)
	}

	return &SolveProblem{Problem: p, Definition: def, deps: deps, hadCases: hadCases}, nil
}

// MatchedAny reports whether this problem belongs in a -m/--match run:
// true if it never had any named Simulations to filter (match is a
// no-op on it), or if at least one of its Simulations matched.
func (sp *SolveProblem) MatchedAny() bool {
	return !sp.hadCases || len(sp.Problem.Cases) > 0
}

// Key identifies this SolveProblem by its problem name and roots, so
// the same problem depended on from two places collapses to one node.
func (sp *SolveProblem) Key() string {
	return "problem:" + sp.Problem.name + ":" + sp.Problem.SimRoot + ":" + sp.Problem.OutRoot
}

// Depends returns the flattened case/requirement task list.
func (sp *SolveProblem) Depends() []Task { return sp.deps }

// Complete reports whether Run has already finished successfully.
func (sp *SolveProblem) Complete() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.ran
}

// Errored reports whether Run finished with an error.
func (sp *SolveProblem) Errored() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.errored
}

// Run calls the Definition's Run once, after TaskRunner has confirmed
// every dependency is complete.
func (sp *SolveProblem) Run(s *scheduler.Scheduler) error {
	sp.mu.Lock()
	if sp.ran || sp.errored {
		sp.mu.Unlock()
		return nil
	}
	sp.mu.Unlock()

	err := sp.Definition.Run(sp.Problem)

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if err != nil {
		sp.errored = true
	} else {
		sp.ran = true
	}
	return err
}

type badRequirementError string

func (e badRequirementError) Error() string {
	return "task: requirement " + string(e) + " has no Task set"
}

func errBadRequirement(name string) error { return badRequirementError(name) }

func filterByMatch(cases []*Simulation, pattern string) ([]*Simulation, error) {
	var out []*Simulation
	for _, c := range cases {
		ok, err := doublestar.Match(pattern, c.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}
