package task

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/automan/pkg/scheduler"
)

// fakeTask is a minimal, scheduler-independent Task used to test
// TaskRunner's flattening, dedup, and readiness logic without paying
// for a real subprocess per node.
type fakeTask struct {
	key      string
	deps     []Task
	complete bool
	errored  bool
	runCount int
	runErr   error
	onRun    func()
}

func (f *fakeTask) Key() string     { return f.key }
func (f *fakeTask) Depends() []Task { return f.deps }
func (f *fakeTask) Complete() bool  { return f.complete }
func (f *fakeTask) Errored() bool   { return f.errored }
func (f *fakeTask) Run(s *scheduler.Scheduler) error {
	f.runCount++
	if f.onRun != nil {
		f.onRun()
	}
	return f.runErr
}

func TestTaskRunnerFlattenDedupsByKey(t *testing.T) {
	t1 := &fakeTask{key: "t1", complete: true}
	t2 := &fakeTask{key: "t1", complete: true} // same key as t1, different instance
	t3 := &fakeTask{key: "t3", complete: true}

	r := NewTaskRunner([]Task{t1, t2, t3}, nil)
	assert.Len(t, r.Todo, 2)
}

func TestTaskRunnerFlattenVisitsDependenciesFirst(t *testing.T) {
	c := &fakeTask{key: "c", complete: true}
	b := &fakeTask{key: "b", complete: true, deps: []Task{c}}
	a := &fakeTask{key: "a", complete: true, deps: []Task{b}}

	r := NewTaskRunner([]Task{a}, nil)
	require.Len(t, r.Todo, 3)
	assert.Equal(t, "c", r.Todo[0].Key())
	assert.Equal(t, "b", r.Todo[1].Key())
	assert.Equal(t, "a", r.Todo[2].Key())
}

func TestTaskRunnerRunIsEmptyWhenEverythingAlreadyComplete(t *testing.T) {
	a := &fakeTask{key: "a", complete: true}
	r := NewTaskRunner([]Task{a}, nil)
	errs := r.Run(time.Millisecond)
	assert.Equal(t, 0, errs)
	assert.Empty(t, r.Todo)
	assert.Equal(t, 0, a.runCount, "an already-complete task must never be re-run")
}

// gatedTask only reports Complete once its own Run has actually been
// called, so a chain of these lets a test prove TaskRunner never
// starts a task before every dependency has genuinely finished.
type gatedTask struct {
	fakeTask
	order   *[]string
	started bool
}

func (g *gatedTask) Run(s *scheduler.Scheduler) error {
	g.started = true
	return g.fakeTask.Run(s)
}

func (g *gatedTask) Complete() bool {
	if g.started && !g.fakeTask.complete {
		g.fakeTask.complete = true
		*g.order = append(*g.order, g.key)
	}
	return g.fakeTask.complete
}

func TestTaskRunnerSchedulesDependentsOnlyAfterDependencyCompletes(t *testing.T) {
	var order []string
	c := &gatedTask{fakeTask: fakeTask{key: "c"}, order: &order}
	b := &gatedTask{fakeTask: fakeTask{key: "b", deps: []Task{c}}, order: &order}
	a := &gatedTask{fakeTask: fakeTask{key: "a", deps: []Task{b}}, order: &order}

	r := NewTaskRunner([]Task{a}, nil)
	errs := r.Run(time.Millisecond)

	assert.Equal(t, 0, errs)
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestTaskRunnerNeverReadiesDependentOfAnErroredTask(t *testing.T) {
	failing := &fakeTask{key: "failing", errored: true}
	dependent := &fakeTask{key: "dependent", deps: []Task{failing}}

	r := NewTaskRunner([]Task{dependent}, nil)
	assert.False(t, r.ready(dependent))
}

func TestTaskRunnerCountsDirectTaskError(t *testing.T) {
	failing := &fakeTask{key: "failing", errored: true}
	r := NewTaskRunner([]Task{failing}, nil)
	errs := r.Run(time.Millisecond)
	assert.Equal(t, 1, errs)
}

// A dependent of an errored task can never become ready, so Run must
// stop polling once a full pass makes no progress, rather than looping
// forever with the dependent stuck in Todo. The original python runner
// returns in the same shape: n_errors + len(t.todo) == len(t.todo at
// start).
func TestTaskRunnerTerminatesLeavingBlockedDependentInTodo(t *testing.T) {
	failing := &fakeTask{key: "failing", errored: true}
	dependent := &fakeTask{key: "dependent", deps: []Task{failing}}

	r := NewTaskRunner([]Task{dependent}, nil)

	done := make(chan int, 1)
	go func() { done <- r.Run(time.Millisecond) }()

	select {
	case errs := <-done:
		assert.Equal(t, 1, errs)
		require.Len(t, r.Todo, 1)
		assert.Equal(t, "dependent", r.Todo[0].Key())
		assert.Equal(t, 0, dependent.runCount, "a task blocked on an errored dependency must never run")
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned: no-progress termination regressed")
	}
}

func TestTaskRunnerEndToEndWithRealCommandTasks(t *testing.T) {
	root := t.TempDir()
	s := newTestScheduler()

	c := NewCommandTask(`python3 -c "print(1)"`, filepath.Join(root, "c"))
	b := NewCommandTask(`python3 -c "print(1)"`, filepath.Join(root, "b")).WithDepends(c)
	a := NewCommandTask(`python3 -c "print(1)"`, filepath.Join(root, "a")).WithDepends(b)

	r := NewTaskRunner([]Task{a}, s)
	errs := r.Run(20 * time.Millisecond)
	assert.Equal(t, 0, errs)
	assert.True(t, a.Complete())
	assert.True(t, b.Complete())
	assert.True(t, c.Complete())
}
