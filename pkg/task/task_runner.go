package task

import (
	"time"

	"github.com/cuemby/automan/pkg/events"
	"github.com/cuemby/automan/pkg/log"
	"github.com/cuemby/automan/pkg/metrics"
	"github.com/cuemby/automan/pkg/scheduler"
)

// TaskRunner flattens a set of top-level Tasks (and their transitive
// Depends) into a deduplicated todo list and drives it to completion:
// start a task as soon as every one of its dependencies is complete,
// and keep polling until the whole list has either finished or
// errored, or a whole pass makes no progress (tasks blocked behind an
// errored dependency are then left in Todo). Errored tasks are not
// retried — see DESIGN.md.
type TaskRunner struct {
	Todo      []Task
	scheduler *scheduler.Scheduler
	started   map[string]bool
	timers    map[string]*metrics.Timer

	// Events, if set, receives a lifecycle Event for every task state
	// transition TaskRunner observes. Left nil by default since most
	// callers (tests, one-shot scripts) have no subscriber.
	Events *events.Broker
}

// NewTaskRunner flattens tasks (and everything they transitively
// depend on) into Todo, in dependency order, deduplicated by Key.
func NewTaskRunner(tasks []Task, s *scheduler.Scheduler) *TaskRunner {
	t := &TaskRunner{scheduler: s, started: make(map[string]bool), timers: make(map[string]*metrics.Timer)}
	seen := make(map[string]bool)
	for _, task := range tasks {
		t.flatten(task, seen)
	}
	return t
}

func (t *TaskRunner) flatten(task Task, seen map[string]bool) {
	for _, dep := range task.Depends() {
		t.flatten(dep, seen)
	}
	if !seen[task.Key()] {
		seen[task.Key()] = true
		t.Todo = append(t.Todo, task)
	}
}

// Run drives Todo to completion, sleeping wait between polls, and
// returns the number of tasks that finished with an error.
func (t *TaskRunner) Run(wait time.Duration) int {
	logger := log.WithComponent("task-runner")
	errors := 0

	for len(t.Todo) > 0 {
		var remaining []Task
		progressed := false
		for _, task := range t.Todo {
			// Check completion before ever starting a task: a fresh
			// CommandTask pointed at an already-done output directory
			// must report done without Run ever being called again.
			switch {
			case task.Complete():
				logger.Debug().Str("task", task.Key()).Msg("task complete")
				t.publish(events.EventTaskComplete, task.Key(), "")
				metrics.TasksTotal.WithLabelValues("complete").Inc()
				t.observeDuration(task.Key())
				progressed = true
				continue
			case task.Errored():
				logger.Error().Str("task", task.Key()).Msg("task errored")
				t.publish(events.EventTaskFailed, task.Key(), "")
				metrics.TasksTotal.WithLabelValues("failed").Inc()
				t.observeDuration(task.Key())
				errors++
				progressed = true
				continue
			}

			if !t.started[task.Key()] && t.ready(task) {
				t.started[task.Key()] = true
				t.timers[task.Key()] = metrics.NewTimer()
				t.publish(events.EventTaskStarted, task.Key(), "")
				progressed = true
				if err := task.Run(t.scheduler); err != nil {
					logger.Error().Err(err).Str("task", task.Key()).Msg("task failed to start")
					t.publish(events.EventTaskFailed, task.Key(), err.Error())
					metrics.TasksTotal.WithLabelValues("failed").Inc()
					t.observeDuration(task.Key())
					errors++
					continue
				}
			}
			remaining = append(remaining, task)
		}
		t.Todo = remaining
		if len(t.Todo) == 0 {
			break
		}
		if !progressed {
			// Every remaining task is blocked on a dependency that will
			// never complete (its own dependency errored upstream) — the
			// original Python runner returns here too, leaving the
			// blocked tasks in Todo rather than polling forever.
			logger.Error().Int("blocked", len(t.Todo)).Msg("no task made progress this pass, stopping")
			break
		}
		time.Sleep(wait)
	}
	return errors
}

// ready reports whether every dependency of task is complete.
func (t *TaskRunner) ready(task Task) bool {
	for _, dep := range task.Depends() {
		if !dep.Complete() {
			return false
		}
	}
	return true
}

// observeDuration records task.Duration metrics for taskKey if it was
// ever started by this runner; a task already Complete on its first
// poll (no Run call made) has no timer and contributes nothing.
func (t *TaskRunner) observeDuration(taskKey string) {
	timer, ok := t.timers[taskKey]
	if !ok {
		return
	}
	timer.ObserveDurationVec(metrics.TaskDuration, taskKey)
	delete(t.timers, taskKey)
}

func (t *TaskRunner) publish(typ events.EventType, taskKey, message string) {
	if t.Events == nil {
		return
	}
	t.Events.Publish(&events.Event{
		Type:     typ,
		Message:  message,
		Metadata: map[string]string{"task": taskKey},
	})
}
