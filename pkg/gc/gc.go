package gc

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/registry"
)

// Collector periodically expires affiliates and removes empty clusters
type Collector struct {
	registry *registry.Registry
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewCollector creates a garbage collector sweeping at the given interval
func NewCollector(reg *registry.Registry, interval time.Duration) *Collector {
	return &Collector{
		registry: reg,
		interval: interval,
		logger:   log.WithComponent("gc"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the collection loop
func (c *Collector) Start() {
	go c.run()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// run fires one sweep per interval, the first one interval after start. The
// loop only ends on Stop.
func (c *Collector) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("Garbage collector started")

	for {
		select {
		case <-ticker.C:
			c.registry.Sweep(time.Now())
		case <-c.stopCh:
			c.logger.Info().Msg("Garbage collector stopped")
			return
		}
	}
}
