// Package automator provides the command-line surface spec.md §6
// describes as existing "per Automator": a user builds one Automator
// naming their simulation/output roots and problem set, then calls
// Run with the process arguments. -a registers a remote worker and
// exits without running anything (the original's ClusterManager.cli
// behaviour); otherwise Run solves every matched problem and returns
// the number of tasks that ended in error, suitable as a process exit
// code.
package automator

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/automan/pkg/clusterconfig"
	"github.com/cuemby/automan/pkg/log"
	"github.com/cuemby/automan/pkg/scheduler"
	"github.com/cuemby/automan/pkg/task"
	"github.com/cuemby/automan/pkg/types"
)

// Automator ties a user's problem set to the scheduling core: where
// simulations and output live, which Problems exist, and where the
// cluster's worker configuration is persisted.
type Automator struct {
	SimulationDir     string
	OutputDir         string
	Problems          []task.ProblemFactory
	ClusterConfigPath string
	ProjectName       string
	Wait              time.Duration

	lastErrorCount int
}

// New builds an Automator over the given roots and problem factories.
// ClusterConfigPath defaults to clusterconfig.FileName in the current
// directory if left empty.
func New(simDir, outDir string, problems []task.ProblemFactory) *Automator {
	return &Automator{
		SimulationDir: simDir,
		OutputDir:     outDir,
		Problems:      problems,
	}
}

// Run parses args as the `run` command line (spec.md §6) and executes
// it: -a/--add-node registers a worker and returns; otherwise it
// solves every Problem matched by -m, optionally forcing a clean
// rebuild with -f, and returns the number of tasks that errored.
func (a *Automator) Run(args []string) int {
	var (
		host  string
		home  string
		nfs   bool
		match string
		force bool
		wait  time.Duration
	)

	cmd := &cobra.Command{
		Use:           "run",
		Short:         "solve problems and run simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			if host != "" {
				return a.addWorker(host, home, nfs)
			}
			if wait <= 0 {
				wait = a.Wait
			}
			return a.solve(match, force, wait)
		},
	}
	cmd.Flags().StringVarP(&host, "add-node", "a", "", "add a new remote worker")
	cmd.Flags().StringVar(&home, "home", "", "home directory of the remote worker (used with -a)")
	cmd.Flags().BoolVar(&nfs, "nfs", false, "remote worker shares the filesystem (used with -a)")
	cmd.Flags().StringVarP(&match, "match", "m", "", "glob filter on simulation names")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore existing outputs and rebuild")
	cmd.Flags().DurationVar(&wait, "wait", 0, "scheduler poll interval (default 2s)")
	cmd.SetArgs(args)

	logger := log.WithComponent("automator")
	if err := cmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("run failed")
		return 1
	}
	return a.lastErrorCount
}

func (a *Automator) configPath() string {
	if a.ClusterConfigPath != "" {
		return a.ClusterConfigPath
	}
	return clusterconfig.FileName
}

func (a *Automator) addWorker(host, home string, nfs bool) error {
	cfg, err := clusterconfig.Load(a.configPath(), a.OutputDir, a.ProjectName)
	if err != nil {
		return err
	}
	clusterconfig.AddWorker(cfg, types.WorkerConfig{Host: host, Home: home, NFS: nfs})
	return clusterconfig.Save(a.configPath(), cfg)
}

func (a *Automator) solve(match string, force bool, wait time.Duration) error {
	cfg, err := clusterconfig.Load(a.configPath(), a.OutputDir, a.ProjectName)
	if err != nil {
		return err
	}
	workers := cfg.Workers
	if len(workers) == 0 {
		workers = []types.WorkerConfig{{Host: "localhost"}}
	}

	sched := scheduler.New(workers, wait)
	defer sched.Close()

	runAll, err := task.NewRunAll(a.SimulationDir, a.OutputDir, a.Problems, match, force)
	if err != nil {
		return fmt.Errorf("automator: expanding problems: %w", err)
	}

	runner := task.NewTaskRunner([]task.Task{runAll}, sched)
	pollWait := wait
	if pollWait <= 0 {
		pollWait = time.Second
	}
	a.lastErrorCount = runner.Run(pollWait)
	return nil
}
