package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/automan/pkg/types"
)

func TestNewSimulationDefaultsNameToRootBasename(t *testing.T) {
	sim := NewSimulation("/out/update_h", "python3 run.py")
	assert.Equal(t, "update_h", sim.Name)
}

func TestNewSimulationRendersBareAndValuedFlags(t *testing.T) {
	sim := NewSimulation("/out/case", "python3 run.py",
		types.Param{Key: "n", Value: 4},
		types.Param{Key: "update_h", Value: nil},
	)
	cmd, ok := sim.Command.(string)
	assert.True(t, ok)
	assert.Equal(t, "python3 run.py --n 4 --update_h", cmd)
}

func TestSimulationLabelsRendersRequestedKeys(t *testing.T) {
	sim := NewSimulation("/out/case", "python3 run.py",
		types.Param{Key: "n", Value: 4},
		types.Param{Key: "dt", Value: 0.01},
	)
	assert.Equal(t, "n=4, dt=0.01", sim.Labels([]string{"n", "dt"}))
	assert.Equal(t, "n=4", sim.Labels([]string{"n"}))
	assert.Equal(t, "", sim.Labels([]string{"missing"}))
}

func TestSimulationInputPathJoinsOntoRoot(t *testing.T) {
	sim := NewSimulation("/out/case", "python3 run.py")
	assert.Equal(t, "/out/case/results.dat", sim.InputPath("results.dat"))
}

func TestSimulationWithCoresShadowsCommandTask(t *testing.T) {
	sim := NewSimulation("/out/case", "python3 run.py").WithCores(2, 4)
	assert.Equal(t, 2, sim.NCore)
	assert.Equal(t, 4, sim.NThread)
}
