package automator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/automan/pkg/clusterconfig"
	"github.com/cuemby/automan/pkg/job"
	"github.com/cuemby/automan/pkg/task"
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

type oneCaseProblem struct {
	ran bool
}

func (p *oneCaseProblem) Name() string { return "demo" }

func (p *oneCaseProblem) Setup(prob *task.Problem) {
	prob.Cases = []*task.Simulation{
		task.NewSimulation(prob.OutputPath("case1"), `python3 -c "print(1)"`),
	}
}

func (p *oneCaseProblem) Run(prob *task.Problem) error {
	p.ran = true
	return prob.MakeOutputDir()
}

func TestAutomatorAddWorkerPersistsConfigWithoutRunning(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, clusterconfig.FileName)

	a := New(filepath.Join(dir, "sims"), filepath.Join(dir, "out"), nil)
	a.ClusterConfigPath = configPath

	exitCode := a.Run([]string{"-a", "node1", "--home", "/home/node1"})
	assert.Equal(t, 0, exitCode)

	cfg, err := clusterconfig.Load(configPath, "", "")
	require.NoError(t, err)
	require.Len(t, cfg.Workers, 1)
	assert.Equal(t, "node1", cfg.Workers[0].Host)
	assert.Equal(t, "/home/node1", cfg.Workers[0].Home)
}

func TestAutomatorRunSolvesProblemsAgainstLocalWorker(t *testing.T) {
	dir := t.TempDir()
	problem := &oneCaseProblem{}

	a := New(filepath.Join(dir, "sims"), filepath.Join(dir, "out"), []task.ProblemFactory{
		func() task.Definition { return problem },
	})
	a.ClusterConfigPath = filepath.Join(dir, clusterconfig.FileName)
	a.Wait = 20_000_000 // 20ms, as time.Duration nanoseconds

	exitCode := a.Run(nil)
	assert.Equal(t, 0, exitCode)
	assert.True(t, problem.ran)
}

func TestAutomatorConfigPathDefaultsToClusterConfigFileName(t *testing.T) {
	a := New("sims", "out", nil)
	assert.Equal(t, clusterconfig.FileName, a.configPath())
	a.ClusterConfigPath = "custom.json"
	assert.Equal(t, "custom.json", a.configPath())
}

func TestAutomatorLoadWithoutClusterConfigHasNoWorkers(t *testing.T) {
	dir := t.TempDir()
	a := New(filepath.Join(dir, "sims"), filepath.Join(dir, "out"), nil)
	a.ClusterConfigPath = filepath.Join(dir, clusterconfig.FileName)

	cfg, err := clusterconfig.Load(a.configPath(), "", "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Workers)

	_ = types.WorkerConfig{} // keep import meaningful without over-fetching internals
}
