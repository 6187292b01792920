// Package clusterconfig loads and saves the cluster configuration file
// named in spec.md §6: the project root, its name, the source
// directories an external bootstrap tool syncs to remote workers, and
// the ordered worker list a Scheduler is built from. Provisioning a
// remote host (installing a runtime, rsyncing sources) is the external
// collaborator's job; this package only owns the JSON record of what
// that collaborator is supposed to have done.
package clusterconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"

	"github.com/cuemby/automan/pkg/types"
)

// FileName is the config file's name inside a project root.
const FileName = "automan_cluster.json"

// Load reads the cluster config at path. A missing file is not an
// error: it returns a zero-value ClusterConfig with ProjectName set
// from projectName and Root from root, ready for AddWorker calls and a
// subsequent Save, matching "written on first run" from spec.md §6.
func Load(path, root, projectName string) (*types.ClusterConfig, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &types.ClusterConfig{Root: root, ProjectName: projectName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clusterconfig: reading %s: %w", path, err)
	}

	var cfg types.ClusterConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("clusterconfig: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path atomically, via rename-into-place, so a
// concurrent reader never observes a half-written config.
func Save(path string, cfg *types.ClusterConfig) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("clusterconfig: encoding: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("clusterconfig: writing %s: %w", path, err)
	}
	return nil
}

// AddWorker appends conf to the config's worker list. It only touches
// configuration — a Scheduler built from the updated config lazily
// instantiates the new worker itself, on its first submission (spec.md
// §6: "-a <host> ... — delegate to cluster-manager add_worker").
func AddWorker(cfg *types.ClusterConfig, conf types.WorkerConfig) {
	cfg.Workers = append(cfg.Workers, conf)
}
