// Package job implements the supervised-subprocess abstraction at the
// bottom of automan's execution layer: a Job owns one external command,
// its output directory, and a durable on-disk status record that
// survives the driver process being killed.
//
// A Job does not run its child under a goroutine of the calling
// process. Instead Run re-execs the current binary into a detached
// supervisor process (SuperviseArg, wired up by cmd/automan and
// cmd/automan-agent as a hidden subcommand) that owns the actual
// os/exec.Cmd, writes job_info.json, and outlives the caller the same
// way a containerd shim outlives the containerd daemon. This is what
// lets a driver crash leave jobs running rather than orphaned mid-write.
package job

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/google/shlex"

	"github.com/cuemby/automan/pkg/types"
)

const (
	infoFileName   = "job_info.json"
	specFileName   = "job_spec.json"
	stdoutFileName = "stdout.txt"
	stderrFileName = "stderr.txt"

	// SuperviseArg is the hidden subcommand name a binary embedding
	// pkg/job must wire up (see pkg/job/supervise.go's Supervise) so
	// that Run can re-exec itself as a detached supervisor.
	SuperviseArg = "__automan_supervise__"
)

// AllCores is the sentinel n_core value meaning "reserve every core of
// the machine": CoresRequired(AllCores, total) == total.
const AllCores = -1

// Job supervises one external command via a detached child process.
type Job struct {
	Command   []string
	OutputDir string
	NCore     int
	NThread   int
	Env       map[string]string

	outputAlreadyExisted bool
	infoPath             string
	specPath             string
	stdoutPath           string
	stderrPath           string

	supervisor *exec.Cmd
}

// New constructs a Job. command may be a pre-split argument list or a
// shell-style string tokenised the way Python's shlex.split would
// (quoting, escapes). nCore and nThread follow spec.md's resolution
// rules: positive values are absolute, 0 means "don't reserve any
// cores" (always schedulable), negative values are resolved against a
// worker's total core count by CoresRequired/ThreadsRequired.
func New(command interface{}, outputDir string, nCore, nThread int, env map[string]string) (*Job, error) {
	cmd, err := commandArgs(command)
	if err != nil {
		return nil, fmt.Errorf("job: parsing command: %w", err)
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("job: command must not be empty")
	}
	for i, arg := range cmd {
		cmd[i] = strings.ReplaceAll(arg, "$output_dir", outputDir)
	}
	_, statErr := os.Stat(outputDir)
	j := &Job{
		Command:              cmd,
		OutputDir:            outputDir,
		NCore:                nCore,
		NThread:              nThread,
		Env:                  env,
		outputAlreadyExisted: statErr == nil,
		infoPath:             filepath.Join(outputDir, infoFileName),
		specPath:             filepath.Join(outputDir, specFileName),
		stdoutPath:           filepath.Join(outputDir, stdoutFileName),
		stderrPath:           filepath.Join(outputDir, stderrFileName),
	}
	return j, nil
}

// FromSpec reconstructs a Job from the wire form sent across the
// remote channel (pkg/channel) — the Go analogue of automan's
// _RemoteManager.run(job_data) constructing a Job(**job_data).
func FromSpec(spec types.JobSpec) (*Job, error) {
	return New(spec.Command, spec.OutputDir, spec.NCore, spec.NThread, spec.Env)
}

// ToSpec reduces the Job to the data sent across the remote channel
// and persisted as job_spec.json for the detached supervisor to read.
func (j *Job) ToSpec() types.JobSpec {
	return types.JobSpec{
		Command:   j.Command,
		OutputDir: j.OutputDir,
		NCore:     j.NCore,
		NThread:   j.NThread,
		Env:       j.Env,
	}
}

func commandArgs(command interface{}) ([]string, error) {
	switch v := command.(type) {
	case []string:
		return v, nil
	case string:
		return shlex.Split(v)
	default:
		return nil, fmt.Errorf("job: command must be a string or []string, got %T", command)
	}
}

// SubstituteInCommand replaces every argument whose path basename
// equals basename with substitute. Used to rewrite an interpreter
// name (e.g. "python") to an absolute path when PATH cannot be
// trusted on a remote host.
func (j *Job) SubstituteInCommand(basename, substitute string) {
	for i, arg := range j.Command {
		if filepath.Base(arg) == basename {
			j.Command[i] = substitute
		}
	}
}

// PrettyCommand renders the command the way it is logged and printed
// to the user: a plain space-joined string.
func (j *Job) PrettyCommand() string {
	s := ""
	for i, a := range j.Command {
		if i > 0 {
			s += " "
		}
		s += a
	}
	return s
}

// CoresRequired resolves n against a machine with the given total core
// count: positive values pass through, 0 means no reservation, and a
// negative value n means "divide the machine into |n| shares and take
// one" (floor(total/|n|)).
func CoresRequired(n, total int) int {
	switch {
	case n > 0:
		return n
	case n == 0:
		return 0
	default:
		return total / -n
	}
}

// ThreadsRequired resolves t against a machine with the given total
// core count and the job's (possibly still-relative) core request n.
// Positive t passes through; 0 means "don't set OMP_NUM_THREADS" at
// all; a negative t first resolves n into an absolute core count via
// CoresRequired and then multiplies by |t| — so t=-2 reads "run 2
// threads per allocated core", the same way n=-2 reads "use half the
// machine's cores" (spec.md: "t=-2, c=-1 on a 4-core host yields 8").
func ThreadsRequired(t, n, total int) int {
	switch {
	case t > 0:
		return t
	case t == 0:
		return 0
	default:
		return CoresRequired(n, total) * -t
	}
}

// TotalCores is the number of logical cores this machine reports.
func TotalCores() int {
	return runtime.NumCPU()
}

// Run creates the output directory if needed, persists the job spec
// and an initial "running" info record, and re-execs the current
// binary as a detached supervisor that owns the actual child process.
// Run returns once the supervisor has been started; it does not wait
// for the underlying command to finish (see Join).
func (j *Job) Run() error {
	if err := os.MkdirAll(j.OutputDir, 0o755); err != nil {
		return fmt.Errorf("job: creating output dir: %w", err)
	}
	if err := j.writeSpec(); err != nil {
		return err
	}
	if err := j.writeInfo(types.JobInfo{Status: types.StatusRunning}); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("job: locating own executable: %w", err)
	}

	sup := exec.Command(exe, SuperviseArg, j.OutputDir)
	sup.Stdin = nil
	sup.Stdout = nil
	sup.Stderr = nil
	detach(sup)

	if err := sup.Start(); err != nil {
		exitcode := -1
		_ = j.writeInfo(types.JobInfo{
			Status: types.StatusError, End: types.Timestamp(time.Now()), ExitCode: &exitcode,
		})
		return fmt.Errorf("job: starting supervisor for %s: %w", j.PrettyCommand(), err)
	}
	j.supervisor = sup
	// The supervisor is intentionally not reaped here: it detaches into
	// its own session and this process does not wait on it. Release
	// lets the runtime forget the *os.Process without sending a signal.
	return sup.Process.Release()
}

// Join blocks until the job reaches a terminal status. It is safe to
// call from a process other than the one that called Run, since it
// only observes job_info.json.
func (j *Job) Join() error {
	for {
		status := j.Status()
		if status == types.StatusDone || status == types.StatusError {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Status reads the info file and, if it claims the job is still
// running, verifies the recorded pid is still alive. A dead pid with a
// "running" record means the supervisor was killed before it could
// record a terminal status; that resolves to "error" so a crashed
// driver never reports false-positive success.
func (j *Job) Status() types.JobStatus {
	info := j.readInfo()
	if info.Status == types.StatusRunning && info.PID != nil && !pidAlive(*info.PID) {
		return types.StatusError
	}
	return info.Status
}

// GetInfo returns the parsed job_info.json record.
func (j *Job) GetInfo() types.JobInfo {
	return j.readInfo()
}

// GetStdout returns the full captured stdout.
func (j *Job) GetStdout() (string, error) {
	b, err := os.ReadFile(j.stdoutPath)
	return string(b), err
}

// GetStderr returns the full captured stderr.
func (j *Job) GetStderr() (string, error) {
	b, err := os.ReadFile(j.stderrPath)
	return string(b), err
}

// Clean removes the job's outputs. If the output directory pre-existed
// when this Job was constructed and force is false, only the log
// files are removed, preserving any user data already there;
// otherwise the whole directory tree is removed. force always deletes.
func (j *Job) Clean(force bool) error {
	if j.outputAlreadyExisted && !force {
		if _, err := os.Stat(j.stdoutPath); err == nil {
			os.Remove(j.stdoutPath)
			os.Remove(j.stderrPath)
		}
		return nil
	}
	if _, err := os.Stat(j.OutputDir); err == nil {
		return os.RemoveAll(j.OutputDir)
	}
	return nil
}

func (j *Job) writeSpec() error {
	b, err := json.Marshal(j.ToSpec())
	if err != nil {
		return fmt.Errorf("job: encoding spec: %w", err)
	}
	if err := renameio.WriteFile(j.specPath, b, 0o644); err != nil {
		return fmt.Errorf("job: writing spec: %w", err)
	}
	return nil
}

func (j *Job) writeInfo(info types.JobInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("job: encoding info: %w", err)
	}
	if err := renameio.WriteFile(j.infoPath, b, 0o644); err != nil {
		return fmt.Errorf("job: writing info: %w", err)
	}
	return nil
}

func (j *Job) readInfo() types.JobInfo {
	b, err := os.ReadFile(j.infoPath)
	if err != nil {
		return types.JobInfo{Status: types.StatusNotStarted}
	}
	var info types.JobInfo
	if err := json.Unmarshal(b, &info); err != nil {
		// A half-written snapshot taken mid-write: treat as running,
		// matching the original's "unparsable => running" fallback.
		return types.JobInfo{Status: types.StatusRunning}
	}
	return info
}
