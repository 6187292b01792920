package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/automan/pkg/task"
)

// squares is a minimal demonstration Problem: it runs a handful of
// independent cases, each writing one number's square to disk, then
// combines them into a single summary file. It plays the role
// examples/tutorial/automate1.py's Squares class does for the Python
// original.
type squares struct {
	cases []*task.Simulation
}

func (s *squares) Name() string { return "squares" }

func (s *squares) Setup(p *task.Problem) {
	for _, n := range []int{1, 2, 3, 4} {
		root := p.OutputPath(fmt.Sprintf("case_%d", n))
		cmd := fmt.Sprintf(`sh -c "mkdir -p \"$output_dir\" && echo %d > \"$output_dir\"/value.txt"`, n*n)
		sim := task.NewSimulation(root, cmd)
		s.cases = append(s.cases, sim)
	}
	p.Cases = s.cases
}

func (s *squares) Run(p *task.Problem) error {
	if err := p.MakeOutputDir(); err != nil {
		return err
	}

	var lines []string
	for _, c := range s.cases {
		b, err := os.ReadFile(filepath.Join(c.Root, "value.txt"))
		if err != nil {
			return fmt.Errorf("squares: reading %s: %w", c.Root, err)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", c.Name, strings.TrimSpace(string(b))))
	}

	summary := filepath.Join(p.OutputPath(), "summary.txt")
	return os.WriteFile(summary, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
