// Package worker implements the two kinds of place a Job can run: a
// LocalWorker that runs it directly via pkg/job, and a RemoteWorker
// that ships it across pkg/channel to an automan-agent process on
// another host. Both satisfy the same Worker interface so pkg/scheduler
// never has to care which one it is holding.
package worker

import (
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/automan/pkg/channel"
	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/log"
	"github.com/cuemby/automan/pkg/metrics"
	"github.com/cuemby/automan/pkg/types"
)

// Worker is the scheduling-facing surface of a place Jobs can run.
type Worker interface {
	// Host identifies the worker the way spec.md's worker_config does
	// ("localhost" for the local machine, otherwise an SSH host).
	Host() string
	// TotalCores is the worker's total logical core count.
	TotalCores() int
	// FreeCores is TotalCores minus cores currently reserved by jobs
	// this Worker itself started (see DESIGN.md on why this is
	// accounted for rather than sampled from OS load).
	FreeCores() int
	// CoresRequired resolves n against this worker's TotalCores.
	CoresRequired(n int) int
	// CanRun reports whether a job requesting n cores can start now.
	CanRun(n int) bool
	// Run starts j on this worker and returns a handle to it.
	Run(j *job.Job) (*JobProxy, error)
}

// JobProxy is what a Scheduler hands back from Submit: a handle that
// forwards Job's read-only surface (status, output, info) regardless
// of whether the underlying Job is local or lives behind a channel on
// a remote host, plus the Worker it ended up running on (tests and
// callers alike use this to see where work landed).
type JobProxy struct {
	Worker Worker
	JobID  string

	local *job.Job // non-nil for a LocalWorker-owned job
	remote *remoteHandle
	cores int
}

type remoteHandle struct {
	client *channel.Client
	jobID  string
}

// Status reports the job's current status.
func (p *JobProxy) Status() types.JobStatus {
	if p.local != nil {
		return p.local.Status()
	}
	var status types.JobStatus
	if err := p.remote.client.Call(channel.MethodStatus, p.remote.jobID, &status); err != nil {
		return types.StatusError
	}
	return status
}

// GetStdout returns the job's captured stdout.
func (p *JobProxy) GetStdout() (string, error) {
	if p.local != nil {
		return p.local.GetStdout()
	}
	var out string
	err := p.remote.client.Call(channel.MethodStdout, p.remote.jobID, &out)
	return out, err
}

// GetStderr returns the job's captured stderr.
func (p *JobProxy) GetStderr() (string, error) {
	if p.local != nil {
		return p.local.GetStderr()
	}
	var out string
	err := p.remote.client.Call(channel.MethodStderr, p.remote.jobID, &out)
	return out, err
}

// GetInfo returns the job's info record.
func (p *JobProxy) GetInfo() (types.JobInfo, error) {
	if p.local != nil {
		return p.local.GetInfo(), nil
	}
	var info types.JobInfo
	err := p.remote.client.Call(channel.MethodInfo, p.remote.jobID, &info)
	return info, err
}

// Join blocks until the job reaches a terminal status.
func (p *JobProxy) Join() error {
	if p.local != nil {
		return p.local.Join()
	}
	return p.remote.client.Call(channel.MethodJoin, p.remote.jobID, nil)
}

// CopyOutput pulls a finished job's output back to localDir, the Go
// analogue of jobs.py's JobProxy.copy_output delegating to its
// Worker. A job that ran locally is already sitting in localDir, so
// this is a no-op unless p was handed back by a RemoteWorker.
func (p *JobProxy) CopyOutput(localDir string) error {
	if p.local != nil {
		return nil
	}
	rw, ok := p.Worker.(*RemoteWorker)
	if !ok {
		return nil
	}
	return rw.CopyOutput(p.remote.jobID, localDir)
}

// LocalWorker runs Jobs directly on the machine automan itself runs
// on, the Go analogue of jobs.py's LocalWorker.
type LocalWorker struct {
	mu       sync.Mutex
	reserved int
	log      zerolog.Logger
}

// NewLocalWorker constructs a LocalWorker.
func NewLocalWorker() *LocalWorker {
	return &LocalWorker{log: log.WithComponent("worker").With().Str("worker_host", "localhost").Logger()}
}

// Host always reports "localhost".
func (w *LocalWorker) Host() string { return "localhost" }

// TotalCores reports the machine's logical core count.
func (w *LocalWorker) TotalCores() int { return job.TotalCores() }

// FreeCores is TotalCores minus what's reserved by jobs this worker
// has started and not yet seen finish.
func (w *LocalWorker) FreeCores() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	f := w.TotalCores() - w.reserved
	if f < 0 {
		f = 0
	}
	return f
}

// CoresRequired resolves n against this worker's TotalCores.
func (w *LocalWorker) CoresRequired(n int) int {
	return job.CoresRequired(n, w.TotalCores())
}

// CanRun reports whether a job requesting n cores fits in FreeCores.
// n == 0 always fits.
func (w *LocalWorker) CanRun(n int) bool {
	if n == 0 {
		return true
	}
	return w.CoresRequired(n) <= w.FreeCores()
}

// Run starts j and reserves its resolved core count until it finishes.
func (w *LocalWorker) Run(j *job.Job) (*JobProxy, error) {
	cores := w.CoresRequired(j.NCore)
	if err := j.Run(); err != nil {
		return nil, fmt.Errorf("worker: starting job %s: %w", j.PrettyCommand(), err)
	}
	w.mu.Lock()
	w.reserved += cores
	w.mu.Unlock()
	w.log.Info().Str("command", j.PrettyCommand()).Int("cores", cores).Msg("job started")
	metrics.JobsTotal.WithLabelValues("running").Inc()
	timer := metrics.NewTimer()

	go func() {
		err := j.Join()
		w.mu.Lock()
		w.reserved -= cores
		if w.reserved < 0 {
			w.reserved = 0
		}
		w.mu.Unlock()
		metrics.JobsTotal.WithLabelValues("running").Dec()
		timer.ObserveDuration(metrics.JobDuration)
		if err != nil || j.Status() == types.StatusError {
			metrics.JobsTotal.WithLabelValues("error").Inc()
			metrics.JobsFailedTotal.Inc()
		} else {
			metrics.JobsTotal.WithLabelValues("done").Inc()
		}
	}()

	return &JobProxy{Worker: w, local: j, cores: cores}, nil
}

// RemoteWorker runs Jobs on another host by shipping them across
// pkg/channel to an automan-agent process, the Go analogue of
// jobs.py's RemoteWorker (which used execnet to start a Python
// interpreter on the remote host and drive it over its gateway
// channel).
type RemoteWorker struct {
	host     string
	agentBin string
	chdir    string
	nfs      bool
	testing  bool

	mu     sync.Mutex
	client *channel.Client
	cmd    *exec.Cmd
	log    zerolog.Logger

	reserved int
}

// NewRemoteWorker constructs a RemoteWorker from a WorkerConfig entry.
// When cfg.Testing is set, the "remote" peer is run in-process over an
// in-memory pipe instead of over ssh, for tests that want RemoteWorker
// behaviour without a real second host.
func NewRemoteWorker(cfg types.WorkerConfig) *RemoteWorker {
	agentBin := cfg.AgentBin
	if agentBin == "" {
		agentBin = "automan-agent"
	}
	return &RemoteWorker{
		host:     cfg.Host,
		agentBin: agentBin,
		chdir:    cfg.Chdir,
		nfs:      cfg.NFS,
		testing:  cfg.Testing,
		log:      log.WithComponent("worker").With().Str("worker_host", cfg.Host).Logger(),
	}
}

// Host reports the configured remote hostname.
func (w *RemoteWorker) Host() string { return w.host }

func (w *RemoteWorker) ensureConnected() (*channel.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		return w.client, nil
	}

	if w.testing {
		serverR, clientW := io.Pipe()
		clientR, serverW := io.Pipe()
		go Serve(channel.New(serverR, serverW))
		w.client = channel.NewClient(channel.New(clientR, clientW))
		return w.client, nil
	}

	args := []string{w.agentBin, "serve"}
	var cmd *exec.Cmd
	if w.host == "localhost" || w.host == "" {
		cmd = exec.Command(args[0], args[1:]...)
	} else {
		sshArgs := append([]string{w.host}, args...)
		cmd = exec.Command("ssh", sshArgs...)
	}
	if w.chdir != "" {
		cmd.Dir = w.chdir
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: wiring stdin to %s: %w", w.host, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: wiring stdout to %s: %w", w.host, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker: starting agent on %s: %w", w.host, err)
	}
	w.cmd = cmd
	w.client = channel.NewClient(channel.New(stdout, stdin))
	return w.client, nil
}

// TotalCores asks the peer for its logical core count.
func (w *RemoteWorker) TotalCores() int {
	c, err := w.ensureConnected()
	if err != nil {
		return 0
	}
	var total int
	if err := c.Call(channel.MethodTotalCores, nil, &total); err != nil {
		return 0
	}
	return total
}

// FreeCores is TotalCores minus cores this RemoteWorker has reserved
// for jobs it started that have not yet finished. Like LocalWorker,
// this is accounted locally rather than sampled from the remote host's
// load, so it only reflects jobs this same scheduler process started.
// TotalCores is called outside the lock: it dials ensureConnected,
// which takes w.mu itself, and sync.Mutex is not reentrant.
func (w *RemoteWorker) FreeCores() int {
	total := w.TotalCores()
	w.mu.Lock()
	reserved := w.reserved
	w.mu.Unlock()
	f := total - reserved
	if f < 0 {
		f = 0
	}
	return f
}

// CoresRequired resolves n against the remote host's TotalCores.
func (w *RemoteWorker) CoresRequired(n int) int {
	return job.CoresRequired(n, w.TotalCores())
}

// CanRun reports whether a job requesting n cores fits in FreeCores.
// n == 0 always fits, without needing to dial the peer at all.
func (w *RemoteWorker) CanRun(n int) bool {
	if n == 0 {
		return true
	}
	return w.CoresRequired(n) <= w.FreeCores()
}

// Run ships j's spec across the channel and asks the peer to start it.
func (w *RemoteWorker) Run(j *job.Job) (*JobProxy, error) {
	c, err := w.ensureConnected()
	if err != nil {
		return nil, err
	}
	cores := w.CoresRequired(j.NCore)

	var jobID string
	if err := c.Call(channel.MethodRun, j.ToSpec(), &jobID); err != nil {
		return nil, fmt.Errorf("worker: submitting job to %s: %w", w.host, err)
	}
	w.mu.Lock()
	w.reserved += cores
	w.mu.Unlock()
	w.log.Info().Str("command", j.PrettyCommand()).Str("job_id", jobID).Msg("job submitted to remote worker")
	metrics.JobsTotal.WithLabelValues("running").Inc()
	timer := metrics.NewTimer()

	proxy := &JobProxy{Worker: w, remote: &remoteHandle{client: c, jobID: jobID}, cores: cores}
	go func() {
		err := proxy.Join()
		w.mu.Lock()
		w.reserved -= cores
		if w.reserved < 0 {
			w.reserved = 0
		}
		w.mu.Unlock()
		metrics.JobsTotal.WithLabelValues("running").Dec()
		timer.ObserveDuration(metrics.JobDuration)
		if err != nil || proxy.Status() == types.StatusError {
			metrics.JobsTotal.WithLabelValues("error").Inc()
			metrics.JobsFailedTotal.Inc()
		} else {
			metrics.JobsTotal.WithLabelValues("done").Inc()
		}
	}()
	return proxy, nil
}

// CopyOutput pulls a finished remote job's output directory back to
// localDir via scp. The job ran with localDir as its output directory,
// so the same path on the remote host is copied into localDir's parent.
// It is a no-op when the worker was configured with NFS (a shared
// filesystem means the files are already visible locally) or in testing
// mode (the in-process peer writes straight into localDir).
func (w *RemoteWorker) CopyOutput(jobID, localDir string) error {
	if w.nfs || w.testing {
		return nil
	}
	remotePath := fmt.Sprintf("%s:%s", w.host, localDir)
	cmd := exec.Command("scp", "-r", remotePath, filepath.Dir(localDir))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("worker: copying output from %s: %w: %s", w.host, err, out)
	}
	return nil
}

// Close tears down the connection to the peer, if one was opened.
func (w *RemoteWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	w.client = nil
	return nil
}
