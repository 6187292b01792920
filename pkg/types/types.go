// Package types holds the plain data shapes shared across automan's
// execution and task-graph layers: job status records, worker and
// cluster configuration, and the parameter representation used by
// Simulations.
package types

import "time"

// JobStatus is the status a Job reports, derived from job_info.json
// plus (for a live worker) a liveness check of the recorded pid.
type JobStatus string

const (
	StatusNotStarted JobStatus = "not started"
	StatusRunning     JobStatus = "running"
	StatusDone        JobStatus = "done"
	StatusError       JobStatus = "error"
)

// JobInfo is the durable, on-disk record for a Job. It is written as
// JSON to <output_dir>/job_info.json. An absent file means "not
// started"; a file that fails to parse (a half-written snapshot taken
// mid-write) means "running" — see pkg/job for the rename-into-place
// discipline that is supposed to make this rare.
type JobInfo struct {
	Status   JobStatus `json:"status"`
	PID      *int      `json:"pid"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	ExitCode *int      `json:"exitcode"`
}

// JobSpec is the wire representation of a Job sent across the remote
// channel to a peer RemoteManager: the positional constructor
// arguments of a Job, reduced to data.
type JobSpec struct {
	Command    []string          `json:"command"`
	OutputDir  string            `json:"output_dir"`
	NCore      int               `json:"n_core"`
	NThread    int               `json:"n_thread"`
	Env        map[string]string `json:"env,omitempty"`
}

// WorkerConfig describes one entry in a Scheduler's worker list. A
// host of "localhost" names a LocalWorker; anything else is a
// RemoteWorker reached over SSH.
type WorkerConfig struct {
	Host     string `json:"host"`
	Home     string `json:"home,omitempty"`
	AgentBin string `json:"agent,omitempty"`
	Chdir    string `json:"chdir,omitempty"`
	NFS      bool   `json:"nfs,omitempty"`
	Testing  bool   `json:"testing,omitempty"`
}

// IsLocal reports whether this configuration names the local worker.
func (c WorkerConfig) IsLocal() bool {
	return c.Host == "" || c.Host == "localhost"
}

// ClusterConfig is the on-disk cluster configuration named by spec
// section 6: the project root, its name, the source directories an
// (external) bootstrap tool would sync to remote workers, and the
// configured worker list.
type ClusterConfig struct {
	Root        string         `json:"root"`
	ProjectName string         `json:"project_name"`
	Sources     []string       `json:"sources"`
	Workers     []WorkerConfig `json:"workers"`
}

// Param is a single Simulation parameter value. A nil Value renders
// as a bare flag ("--key"); any other value renders as "--key value"
// (two command-line arguments).
type Param struct {
	Key   string
	Value interface{}
}

// Timestamp formats t the way the original job supervisor stamps
// start/end times: a human-readable wall-clock string, not a format
// meant for machine parsing.
func Timestamp(t time.Time) string {
	return t.Format(time.ANSIC)
}
