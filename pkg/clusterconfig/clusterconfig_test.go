package clusterconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/automan/pkg/types"
)

func TestLoadMissingFileReturnsSeededConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, FileName), "/proj", "myproj")
	require.NoError(t, err)
	assert.Equal(t, "/proj", cfg.Root)
	assert.Equal(t, "myproj", cfg.ProjectName)
	assert.Empty(t, cfg.Workers)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg := &types.ClusterConfig{
		Root:        "/proj",
		ProjectName: "myproj",
		Sources:     []string{"src", "lib"},
	}
	AddWorker(cfg, types.WorkerConfig{Host: "node1", Home: "/home/user", NFS: true})
	require.NoError(t, Save(path, cfg))

	got, err := Load(path, "/ignored", "ignored")
	require.NoError(t, err)
	assert.Equal(t, cfg.Root, got.Root)
	assert.Equal(t, cfg.ProjectName, got.ProjectName)
	assert.Equal(t, cfg.Sources, got.Sources)
	require.Len(t, got.Workers, 1)
	assert.Equal(t, "node1", got.Workers[0].Host)
	assert.True(t, got.Workers[0].NFS)
}

func TestAddWorkerAppendsWithoutInstantiating(t *testing.T) {
	cfg := &types.ClusterConfig{}
	AddWorker(cfg, types.WorkerConfig{Host: "a"})
	AddWorker(cfg, types.WorkerConfig{Host: "b"})
	require.Len(t, cfg.Workers, 2)
	assert.Equal(t, "a", cfg.Workers[0].Host)
	assert.Equal(t, "b", cfg.Workers[1].Host)
}
