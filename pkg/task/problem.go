package task

import (
	"fmt"
	"os"
	"path/filepath"
)

// Definition is what a concrete problem implements — the Go analogue
// of subclassing automan.automation.Problem. Setup populates p.Cases
// and/or p.Requires; Run does the problem's local post-processing
// once every case/requirement is complete.
type Definition interface {
	// Name identifies the problem; it becomes the subdirectory under
	// both the simulation root and the output root. A RunAll's match
	// glob is tested against the problem's Simulation Names, not this.
	Name() string
	// Setup is called once, before the problem's dependency graph is
	// computed, to fill in p.Cases and/or p.Requires.
	Setup(p *Problem)
	// Run does local post-processing (reading case output, writing
	// plots/summaries) after every case/requirement has completed.
	Run(p *Problem) error
}

// Requirement names one thing a Problem depends on besides its own
// Cases — either a plain Task (e.g. a CommandTask) or another
// problem's SolveProblem, built with task.NewSolveProblem against the
// same or a different root pair.
type Requirement struct {
	Name string
	Task Task
}

// Problem holds the bookkeeping shared by every concrete problem:
// where its simulations live, where its output goes, and the cases
// and requirements its Setup populated.
type Problem struct {
	SimRoot string
	OutRoot string
	name    string

	Cases    []*Simulation
	Requires []Requirement

	// Match, if set, restricts Cases to those whose Name matches this
	// glob (github.com/bmatcuk/doublestar syntax), forwarded down from
	// a RunAll's -m/--match flag so a partial rerun only touches the
	// cases the user asked about.
	Match string
}

// NewProblem constructs the bookkeeping half of a problem. Concrete
// problems are built through NewSolveProblem, which also calls Setup.
func NewProblem(simRoot, outRoot, name string) *Problem {
	return &Problem{SimRoot: simRoot, OutRoot: outRoot, name: name}
}

// Name is the problem's identifying name, passed in at construction.
func (p *Problem) Name() string { return p.name }

// InputPath joins parts onto this problem's simulation root
// (<SimRoot>/<Name>/...).
func (p *Problem) InputPath(parts ...string) string {
	return filepath.Join(append([]string{p.SimRoot, p.name}, parts...)...)
}

// OutputPath joins parts onto this problem's output root
// (<OutRoot>/<Name>/...).
func (p *Problem) OutputPath(parts ...string) string {
	return filepath.Join(append([]string{p.OutRoot, p.name}, parts...)...)
}

// MakeOutputDir creates the problem's output directory, as a Run
// implementation is expected to do before writing anything to it.
func (p *Problem) MakeOutputDir() error {
	if err := os.MkdirAll(p.OutputPath(), 0o755); err != nil {
		return fmt.Errorf("problem %s: creating output dir: %w", p.name, err)
	}
	return nil
}

// Clean removes the problem's output directory, and — when force is
// true — every case's job outputs too, so a forced RunAll re-runs
// everything from scratch rather than just re-doing the
// post-processing step.
func (p *Problem) Clean(force bool) error {
	if force {
		for _, c := range p.Cases {
			if err := c.CommandTask.cleanForce(); err != nil {
				return err
			}
		}
	}
	if _, err := os.Stat(p.OutputPath()); err == nil {
		return os.RemoveAll(p.OutputPath())
	}
	return nil
}

// cleanForce removes a CommandTask's job output unconditionally,
// independent of whatever output directory pre-existence tracking the
// underlying Job would otherwise apply.
func (t *CommandTask) cleanForce() error {
	if _, err := os.Stat(t.OutputDir); err == nil {
		return os.RemoveAll(t.OutputDir)
	}
	return nil
}
