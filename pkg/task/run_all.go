package task

import (
	"sort"
	"sync"

	"github.com/cuemby/automan/pkg/scheduler"
)

// ProblemFactory builds a fresh Definition instance, the Go stand-in
// for passing a Problem subclass (rather than an instance) to RunAll
// the way the original's problem_classes list did.
type ProblemFactory func() Definition

// RunAll is the top-level Task spec/run hands TaskRunner: solve every
// problem factory given, restricted by an optional glob against the
// Names of each problem's Simulations, deleting prior output first
// when Force is set.
type RunAll struct {
	SimulationDir string
	OutputDir     string
	Problems      []ProblemFactory
	Match         string
	Force         bool

	mu       sync.Mutex
	built    bool
	children []*SolveProblem
}

// NewRunAll builds and immediately expands a RunAll: every problem
// factory is instantiated, its cases filtered by Match against their
// Simulation Names (a problem with named cases but no match is
// dropped), and
// (if Force is set) has its previous output deleted before the graph
// is handed to a TaskRunner.
func NewRunAll(simDir, outDir string, problems []ProblemFactory, match string, force bool) (*RunAll, error) {
	ra := &RunAll{SimulationDir: simDir, OutputDir: outDir, Problems: problems, Match: match, Force: force}
	if err := ra.build(); err != nil {
		return nil, err
	}
	return ra, nil
}

func (ra *RunAll) build() error {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if ra.built {
		return nil
	}

	for _, factory := range ra.Problems {
		def := factory()
		sp, err := NewSolveProblemMatching(def, ra.SimulationDir, ra.OutputDir, ra.Match)
		if err != nil {
			return err
		}
		if ra.Match != "" && !sp.MatchedAny() {
			continue
		}
		if ra.Force {
			if err := sp.Problem.Clean(true); err != nil {
				return err
			}
		}
		ra.children = append(ra.children, sp)
	}
	ra.built = true
	return nil
}

// Key identifies this RunAll by its roots: one RunAll per
// (simulationDir, outputDir) pair.
func (ra *RunAll) Key() string { return "runall:" + ra.SimulationDir + ":" + ra.OutputDir }

// Depends returns one SolveProblem per matched problem factory.
func (ra *RunAll) Depends() []Task {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	out := make([]Task, len(ra.children))
	for i, c := range ra.children {
		out[i] = c
	}
	return out
}

// Complete reports whether every matched problem has solved.
func (ra *RunAll) Complete() bool {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	for _, c := range ra.children {
		if !c.Complete() {
			return false
		}
	}
	return true
}

// Errored reports whether any matched problem errored.
func (ra *RunAll) Errored() bool {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	for _, c := range ra.children {
		if c.Errored() {
			return true
		}
	}
	return false
}

// Run is a no-op: RunAll exists purely to fan out into SolveProblem
// dependencies; there is nothing left to do once they've all finished.
func (ra *RunAll) Run(s *scheduler.Scheduler) error { return nil }

// ProblemNames reports the Name() of every problem factory RunAll was
// given, sorted, independent of Match.
func (ra *RunAll) ProblemNames() []string {
	names := make([]string, 0, len(ra.Problems))
	for _, f := range ra.Problems {
		names = append(names, f().Name())
	}
	sort.Strings(names)
	return names
}
