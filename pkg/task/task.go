// Package task implements automan's task graph: the layer above
// pkg/job and pkg/scheduler that knows how to express "run this
// command", "run this parametrized Simulation", and "solve this
// Problem, which itself depends on some other tasks" as a DAG, and
// drive that DAG to completion via TaskRunner.
package task

import "github.com/cuemby/automan/pkg/scheduler"

// Task is one node in the dependency graph TaskRunner drives. Run is
// expected to be non-blocking — it kicks work off (submitting a job,
// or doing fast local post-processing) and returns; TaskRunner polls
// Complete/Errored afterward rather than waiting inside Run.
type Task interface {
	// Key uniquely identifies this task so TaskRunner can deduplicate
	// equivalent tasks reachable from more than one place in the graph
	// (the same CommandTask depended on by two different Problems).
	Key() string
	// Depends lists the tasks that must be Complete before Run is
	// called on this one.
	Depends() []Task
	// Complete reports whether this task has finished successfully.
	Complete() bool
	// Errored reports whether this task finished with an error.
	// TaskRunner counts these but does not retry them (no-retry
	// is deliberate: see DESIGN.md).
	Errored() bool
	// Run starts the task's work. TaskRunner only calls this once,
	// after every dependency in Depends is Complete.
	Run(s *scheduler.Scheduler) error
}
