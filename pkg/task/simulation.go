package task

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuemby/automan/pkg/types"
)

// Simulation is a CommandTask built from a base command plus a set of
// named parameters rendered onto the command line, the unit
// Problem.Setup uses to describe the individual runs a Problem
// compares (automan.automation.Simulation).
type Simulation struct {
	*CommandTask

	Root        string
	BaseCommand string
	Params      []types.Param

	// Name defaults to the base name of Root (e.g. a case rooted at
	// ".../elliptical_drop/update_h" is named "update_h") and is what
	// automanutil.FilterByName matches against.
	Name string
}

// NewSimulation builds a Simulation rooted at root, running
// baseCommand with params appended as command-line flags: a nil Value
// renders as a bare "--key" flag, anything else as "--key value".
func NewSimulation(root, baseCommand string, params ...types.Param) *Simulation {
	cmd := renderCommand(baseCommand, params)
	return &Simulation{
		CommandTask: NewCommandTask(cmd, root),
		Root:        root,
		BaseCommand: baseCommand,
		Params:      params,
		Name:        filepath.Base(root),
	}
}

func renderCommand(base string, params []types.Param) string {
	var b strings.Builder
	b.WriteString(base)
	for _, p := range params {
		if p.Value == nil {
			fmt.Fprintf(&b, " --%s", p.Key)
		} else {
			fmt.Fprintf(&b, " --%s %v", p.Key, p.Value)
		}
	}
	return b.String()
}

// WithCores overrides the core/thread reservation (shadows
// CommandTask.WithCores to keep the fluent chain typed as *Simulation).
func (s *Simulation) WithCores(nCore, nThread int) *Simulation {
	s.CommandTask.WithCores(nCore, nThread)
	return s
}

// WithDepends declares tasks that must complete before this Simulation
// runs — typically other Simulations it needs the output of.
func (s *Simulation) WithDepends(deps ...Task) *Simulation {
	s.CommandTask.WithDepends(deps...)
	return s
}

// InputPath joins parts onto Root, the same directory the job writes
// its output to — a Simulation reads its own results back from the
// same place it ran, the way a Problem's post-processing step wants.
func (s *Simulation) InputPath(parts ...string) string {
	return filepath.Join(append([]string{s.Root}, parts...)...)
}

// Labels renders a short "key=value, key=value" string for the given
// parameter keys, used as a plot legend entry by CompareRuns.
func (s *Simulation) Labels(keys []string) string {
	values := make(map[string]interface{}, len(s.Params))
	for _, p := range s.Params {
		values[p.Key] = p.Value
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}
