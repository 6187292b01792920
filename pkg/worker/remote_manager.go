package worker

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/automan/pkg/channel"
	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/types"
)

// manager is the peer-side half of RemoteWorker: it owns the Jobs that
// have actually been started on this host and answers channel.Requests
// against them. This is the Go analogue of jobs.py's
// _RemoteManager, the object execnet ran on the far end of the
// gateway to interpret calls shipped across the channel.
type manager struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

func newManager() *manager {
	return &manager{jobs: make(map[string]*job.Job)}
}

func (m *manager) handle(req channel.Request) channel.Reply {
	switch req.Method {
	case channel.MethodRun:
		var spec types.JobSpec
		if err := channel.Unmarshal(req, &spec); err != nil {
			return channel.Error(err)
		}
		j, err := job.FromSpec(spec)
		if err != nil {
			return channel.Error(err)
		}
		if err := j.Run(); err != nil {
			return channel.Error(err)
		}
		id := uuid.NewString()
		m.mu.Lock()
		m.jobs[id] = j
		m.mu.Unlock()
		return channel.OK(id)

	case channel.MethodStatus:
		j, err := m.lookup(req)
		if err != nil {
			return channel.Error(err)
		}
		return channel.OK(j.Status())

	case channel.MethodJoin:
		j, err := m.lookup(req)
		if err != nil {
			return channel.Error(err)
		}
		if err := j.Join(); err != nil {
			return channel.Error(err)
		}
		return channel.OK(nil)

	case channel.MethodStdout:
		j, err := m.lookup(req)
		if err != nil {
			return channel.Error(err)
		}
		out, err := j.GetStdout()
		if err != nil {
			return channel.Error(err)
		}
		return channel.OK(out)

	case channel.MethodStderr:
		j, err := m.lookup(req)
		if err != nil {
			return channel.Error(err)
		}
		out, err := j.GetStderr()
		if err != nil {
			return channel.Error(err)
		}
		return channel.OK(out)

	case channel.MethodInfo:
		j, err := m.lookup(req)
		if err != nil {
			return channel.Error(err)
		}
		return channel.OK(j.GetInfo())

	case channel.MethodClean:
		j, err := m.lookup(req)
		if err != nil {
			return channel.Error(err)
		}
		if err := j.Clean(true); err != nil {
			return channel.Error(err)
		}
		return channel.OK(nil)

	case channel.MethodFreeCores:
		return channel.OK(job.TotalCores())

	case channel.MethodTotalCores:
		return channel.OK(job.TotalCores())

	default:
		return channel.Error(fmt.Errorf("worker: unknown method %q", req.Method))
	}
}

func (m *manager) lookup(req channel.Request) (*job.Job, error) {
	var id string
	if err := channel.Unmarshal(req, &id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("worker: no job with id %q", id)
	}
	return j, nil
}

// Serve runs the peer side of the remote channel until conn's
// underlying stream hits EOF. cmd/automan-agent's "serve" subcommand
// calls this against os.Stdin/os.Stdout; RemoteWorker's testing=true
// path calls it against an in-memory pipe instead of spawning a real
// peer process.
func Serve(conn *channel.Conn) error {
	m := newManager()
	return channel.Serve(conn, m.handle)
}
