package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// Refresher is anything the coordinator can refresh
type Refresher interface {
	Name() string
	Refresh(ctx context.Context, trigger string) error
}

// Refresh modes
const (
	ModeStopped = "stopped"
	ModePush    = "push"
	ModePoll    = "poll"
)

// RefreshConfig configures the RefreshCoordinator
type RefreshConfig struct {
	// PollInterval is how often to refresh when no change feed is available.
	// Zero disables polling.
	PollInterval time.Duration `json:"pollInterval"`
}

// DefaultRefreshConfig returns default configuration
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		PollInterval: 30 * time.Second,
	}
}

// RefreshCoordinator keeps the controllers fresh. It listens to the change
// feed when one is configured and switches to polling for good once the
// feed fails. Both triggers go through the same Refresh call.
type RefreshCoordinator struct {
	feed    ChangeFeed
	config  RefreshConfig
	targets []Refresher
	logger  *logging.Logger

	mu       sync.RWMutex
	running  bool
	mode     string
	stopChan chan struct{}
	done     chan struct{}
}

// NewRefreshCoordinator creates a new RefreshCoordinator. feed may be nil.
func NewRefreshCoordinator(feed ChangeFeed, config RefreshConfig, logger *logging.Logger, targets ...Refresher) *RefreshCoordinator {
	return &RefreshCoordinator{
		feed:    feed,
		config:  config,
		targets: targets,
		logger:  logger.WithComponent("refresh-coordinator"),
		mode:    ModeStopped,
	}
}

// Start performs the initial load and begins listening for changes
func (c *RefreshCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("refresh coordinator is already running")
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Stop stops the coordinator and waits for the loop to exit
func (c *RefreshCoordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopChan)
	c.running = false
	done := c.done
	c.mu.Unlock()

	<-done
}

// Mode returns the current refresh mode
func (c *RefreshCoordinator) Mode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

func (c *RefreshCoordinator) setMode(mode string) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.logger.Info("Refresh mode changed", "mode", mode)
}

// RefreshAll refreshes every target and joins their errors
func (c *RefreshCoordinator) RefreshAll(ctx context.Context, trigger string) error {
	var errs []error
	for _, target := range c.targets {
		if err := target.Refresh(ctx, trigger); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// RefreshResource refreshes the target named resource, or every target when
// no target has that name.
func (c *RefreshCoordinator) RefreshResource(ctx context.Context, resource, trigger string) error {
	for _, target := range c.targets {
		if target.Name() == resource {
			return target.Refresh(ctx, trigger)
		}
	}
	return c.RefreshAll(ctx, trigger)
}

// onChange handles a change feed notification. Refresh failures are kept
// by the controller, so the notification is always acknowledged.
func (c *RefreshCoordinator) onChange(ctx context.Context, resource string) error {
	if err := c.RefreshResource(ctx, resource, TriggerPush); err != nil {
		c.logger.WithError(err).Warn("Push refresh failed", "resource", resource)
	}
	return nil
}

func (c *RefreshCoordinator) run(ctx context.Context) {
	c.mu.RLock()
	stopChan, done := c.stopChan, c.done
	c.mu.RUnlock()
	defer close(done)
	defer c.setMode(ModeStopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := c.RefreshAll(ctx, TriggerStartup); err != nil {
		c.logger.WithError(err).Warn("Initial load failed")
	}

	if c.feed != nil {
		c.setMode(ModePush)
		err := c.feed.Run(ctx, c.onChange)
		if ctx.Err() != nil {
			return
		}
		c.logger.WithError(err).Warn("Change feed stopped, falling back to polling")
	}

	if c.config.PollInterval <= 0 {
		return
	}
	c.setMode(ModePoll)

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.RefreshAll(ctx, TriggerPoll); err != nil {
				c.logger.WithError(err).Warn("Poll refresh failed")
			}
		}
	}
}
