// Package scheduler assigns submitted Jobs to workers. It lazily
// instantiates workers from its configured list — a worker only comes
// into existence (a RemoteWorker's ssh connection opened, a
// LocalWorker's accounting initialized) once a Job actually needs one.
// A new Job goes to the first already-instantiated worker, in
// instantiation order, that can run it; the next configured worker is
// created only once every existing one is full. There is no rotation
// among instantiated workers: the earliest worker with room always
// gets the job. Submit blocks until a worker can take
// the job, the same busy-wait the original python scheduler used.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/log"
	"github.com/cuemby/automan/pkg/metrics"
	"github.com/cuemby/automan/pkg/types"
	"github.com/cuemby/automan/pkg/worker"
)

// DefaultWait is the busy-wait interval Submit sleeps between
// admission checks while every instantiated worker is full.
const DefaultWait = 2 * time.Second

// Scheduler holds a fixed, ordered worker configuration and lazily
// brings workers up as jobs need them.
type Scheduler struct {
	mu      sync.Mutex
	config  []types.WorkerConfig
	workers []worker.Worker
	wait    time.Duration
	logger  zerolog.Logger
}

// New builds a Scheduler over the given worker configuration. wait, if
// zero, defaults to DefaultWait.
func New(config []types.WorkerConfig, wait time.Duration) *Scheduler {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Scheduler{
		config: config,
		wait:   wait,
		logger: log.WithComponent("scheduler"),
	}
}

// Workers returns the workers instantiated so far, in instantiation
// order. Tests use this to assert how many (and which) came up.
func (s *Scheduler) Workers() []worker.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]worker.Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

// Submit finds a worker able to run j's core requirement, bringing up
// the next configured-but-not-yet-instantiated worker if every
// existing one is full, and blocks (polling every s.wait) until one is
// available if the whole configured fleet is already saturated.
func (s *Scheduler) Submit(j *job.Job) (*worker.JobProxy, error) {
	timer := metrics.NewTimer()
	metrics.JobsSubmittedTotal.Inc()
	for {
		w, err := s.pickWorker(j.NCore)
		if err != nil {
			return nil, err
		}
		if w != nil {
			timer.ObserveDuration(metrics.SchedulingLatency)
			return w.Run(j)
		}
		s.logger.Debug().Str("command", j.PrettyCommand()).Msg("no free worker, waiting")
		time.Sleep(s.wait)
	}
}

// pickWorker returns a worker that CanRun(n) now, instantiating the
// next configured worker if none of the already-running ones can, or
// nil if every configured worker is already instantiated and full (or
// the worker it just instantiated cannot run n cores either).
func (s *Scheduler) pickWorker(n int) (worker.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.workers {
		if w.CanRun(n) {
			return w, nil
		}
	}
	if len(s.workers) >= len(s.config) {
		return nil, nil
	}

	cfg := s.config[len(s.workers)]
	w, err := s.newWorker(cfg)
	if err != nil {
		return nil, fmt.Errorf("scheduler: starting worker %s: %w", cfg.Host, err)
	}
	s.workers = append(s.workers, w)
	metrics.WorkersTotal.WithLabelValues(cfg.Host).Inc()
	s.logger.Info().Str("worker_host", cfg.Host).Int("count", len(s.workers)).Msg("worker started")
	if !w.CanRun(n) {
		return nil, nil
	}
	return w, nil
}

func (s *Scheduler) newWorker(cfg types.WorkerConfig) (worker.Worker, error) {
	if cfg.IsLocal() {
		return worker.NewLocalWorker(), nil
	}
	return worker.NewRemoteWorker(cfg), nil
}

// Close tears down every instantiated RemoteWorker's connection.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, w := range s.workers {
		if rw, ok := w.(*worker.RemoteWorker); ok {
			if err := rw.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
