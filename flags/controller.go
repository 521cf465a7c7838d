// Package flags holds the live scheduling knobs and the flag-file
// subscription that keeps them current.
package flags

import (
	"sync"

	"go.uber.org/zap"
)

// Flag names delivered by the watcher
const (
	FlagTestMode   = "test-mode"
	FlagTimeOffset = "time-offset"
)

// Update is a discrete flag-change notification
type Update struct {
	Flag  string
	Value interface{}
}

// Controller holds the process-wide mode state: the test-mode switch and
// the signed hour offset applied to RSVP fire times. The scheduler reads
// a snapshot at schedule time; updates arrive asynchronously from the
// flag watcher and never block readers for long.
type Controller struct {
	mu              sync.RWMutex
	testMode        bool
	timeOffsetHours int
	logger          *zap.SugaredLogger
}

// NewController creates a controller with defaults: test mode off,
// zero offset. Defaults stand whenever the flag source is unreachable.
func NewController(log *zap.SugaredLogger) *Controller {
	return &Controller{logger: log}
}

// TestMode returns the current test-mode flag
func (c *Controller) TestMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.testMode
}

// TimeOffsetHours returns the current hour offset
func (c *Controller) TimeOffsetHours() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeOffsetHours
}

// HandleUpdate consumes a single flag-change notification. Unknown flags
// and mistyped values are logged and ignored.
func (c *Controller) HandleUpdate(u Update) {
	switch u.Flag {
	case FlagTestMode:
		v, ok := u.Value.(bool)
		if !ok {
			c.logger.Warnw("Ignoring test-mode update with non-bool value", "value", u.Value)
			return
		}
		c.mu.Lock()
		c.testMode = v
		c.mu.Unlock()
		c.logger.Infow("Test mode updated", "test_mode", v)
	case FlagTimeOffset:
		v, ok := u.Value.(int)
		if !ok {
			c.logger.Warnw("Ignoring time-offset update with non-int value", "value", u.Value)
			return
		}
		c.mu.Lock()
		c.timeOffsetHours = v
		c.mu.Unlock()
		c.logger.Infow("Time offset updated", "time_offset_hours", v)
	default:
		c.logger.Debugw("Ignoring unknown flag update", "flag", u.Flag)
	}
}
