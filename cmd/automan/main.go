// Command automan is a thin driver binary wiring the scheduling core
// to one concrete problem set — the Go analogue of a user's own
// automate.py calling Automator(...).run(). Real users of this module
// write their own main package shaped just like this one, swapping out
// the Problem definitions below for their own.
package main

import (
	"fmt"
	"os"

	"github.com/cuemby/automan/pkg/automator"
	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/task"
)

func main() {
	// A submitted Job re-execs this binary to supervise its child
	// process; intercept that before the Automator's cobra command
	// ever sees the arguments.
	if len(os.Args) > 2 && os.Args[1] == job.SuperviseArg {
		if err := job.Supervise(os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	a := automator.New("outputs", "manuscript/figures", []task.ProblemFactory{
		func() task.Definition { return &squares{} },
	})
	os.Exit(a.Run(os.Args[1:]))
}
