package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/types"
)

func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == job.SuperviseArg {
		if err := job.Supervise(os.Args[2]); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func waitDone(t *testing.T, status func() types.JobStatus, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s := status(); s == types.StatusDone || s == types.StatusError {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerDoesNotStartWorkerUntilSubmit(t *testing.T) {
	s := New([]types.WorkerConfig{{Host: "localhost"}}, 0)
	assert.Len(t, s.Workers(), 0)
}

func TestSchedulerRunsJobOnLocalWorker(t *testing.T) {
	dir := t.TempDir()
	s := New([]types.WorkerConfig{{Host: "localhost"}}, 50*time.Millisecond)

	j, err := job.New("python3 -c \"print(1)\"", dir, 1, 1, nil)
	require.NoError(t, err)

	proxy, err := s.Submit(j)
	require.NoError(t, err)
	waitDone(t, proxy.Status, 5*time.Second)

	assert.Equal(t, types.StatusDone, proxy.Status())
	assert.Equal(t, "localhost", proxy.Worker.Host())
	out, err := proxy.GetStdout()
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	assert.Len(t, s.Workers(), 1)
}

func TestSchedulerOnlyStartsWorkersItNeeds(t *testing.T) {
	root := t.TempDir()
	s := New([]types.WorkerConfig{{Host: "localhost"}, {Host: "localhost"}}, 50*time.Millisecond)

	job1, err := job.New("python3 -c \"import time;time.sleep(0.3);print(1)\"", filepath.Join(root, "a"), 0, 0, nil)
	require.NoError(t, err)
	proxy1, err := s.Submit(job1)
	require.NoError(t, err)
	assert.Len(t, s.Workers(), 1)

	job2, err := job.New("python3 -c \"print(1)\"", filepath.Join(root, "b"), 0, 0, nil)
	require.NoError(t, err)
	_, err = s.Submit(job2)
	require.NoError(t, err)
	// Cores 0 never reserve anything, so the same first worker can take
	// a second concurrent job without the scheduler instantiating a
	// second one.
	assert.Len(t, s.Workers(), 1)

	waitDone(t, proxy1.Status, 5*time.Second)
}
