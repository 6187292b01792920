package task

import (
	"sync"

	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/log"
	"github.com/cuemby/automan/pkg/scheduler"
	"github.com/cuemby/automan/pkg/types"
)

// CommandTask runs one external command through pkg/job and the
// scheduler, the Go analogue of automan's CommandTask (itself a thin
// Task wrapper around a Job).
type CommandTask struct {
	Command   interface{} // string or []string, passed straight to job.New
	OutputDir string
	NCore     int
	NThread   int
	Env       map[string]string
	DependsOn []Task

	mu     sync.Mutex
	proxy  worker
	copied bool
}

// worker is the minimal surface CommandTask needs off a
// *worker.JobProxy, kept as an unexported interface so this file
// doesn't have to import pkg/worker just to spell the concrete type.
type worker interface {
	Status() types.JobStatus
	GetStdout() (string, error)
	GetStderr() (string, error)
	GetInfo() (types.JobInfo, error)
	CopyOutput(localDir string) error
}

// NewCommandTask builds a CommandTask with the conventional defaults
// (one core, one thread) matching automan.jobs.Job's own defaults.
func NewCommandTask(command interface{}, outputDir string) *CommandTask {
	return &CommandTask{Command: command, OutputDir: outputDir, NCore: 1, NThread: 1}
}

// WithCores overrides the core/thread reservation.
func (t *CommandTask) WithCores(nCore, nThread int) *CommandTask {
	t.NCore, t.NThread = nCore, nThread
	return t
}

// WithEnv sets extra environment variables for the job.
func (t *CommandTask) WithEnv(env map[string]string) *CommandTask {
	t.Env = env
	return t
}

// WithDepends declares tasks that must complete before this one runs.
func (t *CommandTask) WithDepends(deps ...Task) *CommandTask {
	t.DependsOn = deps
	return t
}

// Key is the task's output directory: two CommandTasks writing to the
// same directory are the same unit of work.
func (t *CommandTask) Key() string { return t.OutputDir }

// Depends returns the declared dependency tasks.
func (t *CommandTask) Depends() []Task { return t.DependsOn }

// Complete reports whether the underlying job has finished
// successfully, whether or not this process is the one that submitted
// it (a fresh CommandTask pointed at an already-done output_dir is
// complete immediately, matching Job's durable on-disk status). Before
// ever reporting true, it requests the job's output be copied back
// from wherever it ran (a no-op unless the job ran on a RemoteWorker).
func (t *CommandTask) Complete() bool {
	if t.status() != types.StatusDone {
		return false
	}
	t.copyOutput()
	return true
}

// Errored reports whether the underlying job finished with an error.
func (t *CommandTask) Errored() bool {
	return t.status() == types.StatusError
}

// copyOutput requests the job's output be copied back to OutputDir
// exactly once per CommandTask, the moment Complete first observes the
// job done (spec: "on job completion ... request copy_output before
// marking the node complete").
func (t *CommandTask) copyOutput() {
	t.mu.Lock()
	proxy := t.proxy
	already := t.copied
	t.copied = true
	t.mu.Unlock()

	if already || proxy == nil {
		return
	}
	if err := proxy.CopyOutput(t.OutputDir); err != nil {
		log.WithComponent("command-task").Error().Err(err).Str("output_dir", t.OutputDir).Msg("copying output back failed")
	}
}

func (t *CommandTask) status() types.JobStatus {
	t.mu.Lock()
	proxy := t.proxy
	t.mu.Unlock()
	if proxy != nil {
		return proxy.Status()
	}
	j, err := job.New(t.Command, t.OutputDir, t.NCore, t.NThread, t.Env)
	if err != nil {
		return types.StatusError
	}
	return j.Status()
}

// Run submits the job to s. Calling Run more than once is a no-op
// after the first submission.
func (t *CommandTask) Run(s *scheduler.Scheduler) error {
	t.mu.Lock()
	if t.proxy != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	j, err := job.New(t.Command, t.OutputDir, t.NCore, t.NThread, t.Env)
	if err != nil {
		return err
	}
	proxy, err := s.Submit(j)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.proxy = proxy
	t.mu.Unlock()
	return nil
}

// GetStdout returns the job's captured stdout, once it has run.
func (t *CommandTask) GetStdout() (string, error) {
	t.mu.Lock()
	proxy := t.proxy
	t.mu.Unlock()
	if proxy == nil {
		return "", nil
	}
	return proxy.GetStdout()
}

// GetStderr returns the job's captured stderr, once it has run.
func (t *CommandTask) GetStderr() (string, error) {
	t.mu.Lock()
	proxy := t.proxy
	t.mu.Unlock()
	if proxy == nil {
		return "", nil
	}
	return proxy.GetStderr()
}
