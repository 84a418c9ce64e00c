package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/metrics"
	"github.com/tbshrst/talos-discovery/pkg/registry"
)

// FileName is the backup artifact inside the configured backup directory.
const FileName = "discovery_service_backup.json"

// Engine periodically exports the registry to a JSON file and restores it
// on startup. Backups are best-effort: a failed export stops the loop for
// good while the service keeps serving.
type Engine struct {
	registry *registry.Registry
	path     string
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewEngine creates a backup engine. An empty dir disables backups.
func NewEngine(reg *registry.Registry, dir string, interval time.Duration) *Engine {
	path := ""
	if dir != "" {
		path = filepath.Join(dir, FileName)
	}

	return &Engine{
		registry: reg,
		path:     path,
		interval: interval,
		logger:   log.WithComponent("backup"),
		stopCh:   make(chan struct{}),
	}
}

// Restore loads the backup file into the registry if it exists. Expired
// affiliates are restored as-is and left to the next GC sweep. A missing
// file or disabled backups are not errors; a corrupt file is, and the
// caller treats that as fatal.
func (e *Engine) Restore() error {
	if e.path == "" {
		return nil
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	var clusters []*clusterRecord
	if err := json.Unmarshal(data, &clusters); err != nil {
		return fmt.Errorf("failed to decode backup file: %w", err)
	}

	snapshots := fromRecords(clusters)
	e.registry.Restore(snapshots)
	return nil
}

// Start begins the export loop. With no backup directory configured it
// logs once and does nothing.
func (e *Engine) Start() {
	if e.path == "" {
		e.logger.Debug().Msg("Backups deactivated")
		return
	}

	go e.run()
}

// Stop stops the export loop
func (e *Engine) Stop() {
	close(e.stopCh)
}

func (e *Engine) run() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.interval).Str("path", e.path).Msg("Backup loop started")

	for {
		select {
		case <-ticker.C:
			if err := e.Export(); err != nil {
				metrics.BackupFailuresTotal.Inc()
				e.logger.Error().Err(err).Msg("Couldn't save backup")
				e.logger.Error().Msg("Stopping backup loop")
				return
			}
		case <-e.stopCh:
			e.logger.Info().Msg("Backup loop stopped")
			return
		}
	}
}

// Export serializes every cluster to the backup file, truncating any
// previous content and ending with a newline. The registry view is taken
// under the service lock; the file write happens after it is released.
func (e *Engine) Export() error {
	if e.path == "" {
		return nil
	}

	records := toRecords(e.registry.Export())

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(e.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	metrics.BackupRunsTotal.Inc()
	e.logger.Info().Int("clusters", len(records)).Msg("Clusters backed up")
	return nil
}
