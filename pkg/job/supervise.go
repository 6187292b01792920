package job

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/cuemby/automan/pkg/types"
)

// Supervise is the body of the detached supervisor process: given the
// output directory of a Job already written by Run, it reads
// job_spec.json, starts the real child command with its stdout/stderr
// captured to files, records the pid, waits, and records the terminal
// status. It is meant to be invoked as `<exe> SuperviseArg <outputDir>`
// from a hidden subcommand wired up by cmd/automan and
// cmd/automan-agent; nothing else should call it directly.
func Supervise(outputDir string) error {
	specPath := outputDir + string(os.PathSeparator) + specFileName
	b, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("supervise: reading %s: %w", specPath, err)
	}
	var spec types.JobSpec
	if err := json.Unmarshal(b, &spec); err != nil {
		return fmt.Errorf("supervise: decoding %s: %w", specPath, err)
	}
	j, err := FromSpec(spec)
	if err != nil {
		return fmt.Errorf("supervise: rebuilding job: %w", err)
	}

	stdout, err := os.OpenFile(j.stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("supervise: opening stdout: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.OpenFile(j.stderrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("supervise: opening stderr: %w", err)
	}
	defer stderr.Close()

	threadsSet := j.NThread != 0
	resolvedThreads := j.NThread
	if threadsSet {
		resolvedThreads = ThreadsRequired(j.NThread, j.NCore, TotalCores())
	}

	cmd := exec.Command(j.Command[0], j.Command[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	for k, v := range j.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if threadsSet {
		cmd.Env = append(cmd.Env, "OMP_NUM_THREADS="+strconv.Itoa(resolvedThreads))
	}

	if err := cmd.Start(); err != nil {
		exitcode := -1
		_ = j.writeInfo(types.JobInfo{
			Status: types.StatusError, End: types.Timestamp(time.Now()), ExitCode: &exitcode,
		})
		return fmt.Errorf("supervise: starting %s: %w", j.PrettyCommand(), err)
	}

	pid := cmd.Process.Pid
	start := types.Timestamp(time.Now())
	if err := j.writeInfo(types.JobInfo{
		Status: types.StatusRunning, PID: &pid, Start: start,
	}); err != nil {
		return fmt.Errorf("supervise: recording pid: %w", err)
	}

	waitErr := cmd.Wait()
	status := types.StatusDone
	code := 0
	switch {
	case waitErr == nil:
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
	default:
		status = types.StatusError
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	return j.writeInfo(types.JobInfo{
		Status: status, PID: &pid,
		Start: start, End: types.Timestamp(time.Now()),
		ExitCode: &code,
	})
}
