package e32

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SettleDelay is the time the module needs to act on a mode change or a
// command.
const SettleDelay = 100 * time.Millisecond

type config struct {
	logger      logrus.FieldLogger
	settleDelay time.Duration
	sleep       func(time.Duration)
	auxWait     time.Duration
	initialMode Mode
}

func defaultConfig() config {
	return config{
		logger:      logrus.StandardLogger(),
		settleDelay: SettleDelay,
		sleep:       time.Sleep,
		initialMode: ModeUnknown,
	}
}

// DriverOption is a functional option for configuring the Driver.
type DriverOption func(*config)

// WithLogger sets the logger used by the driver.
func WithLogger(logger logrus.FieldLogger) DriverOption {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSettleDelay overrides the delay applied after mode changes and
// commands.
func WithSettleDelay(delay time.Duration) DriverOption {
	return func(c *config) {
		if delay >= 0 {
			c.settleDelay = delay
		}
	}
}

// WithSleep replaces the function used to wait. Tests use it to count delays
// without waiting.
func WithSleep(sleep func(time.Duration)) DriverOption {
	return func(c *config) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithAuxWait makes the driver wait for the AUX line to go high, up to
// timeout, after each settle delay. The pins must implement AuxReader.
//
// Without this option AUX is never read and only the fixed delays apply.
func WithAuxWait(timeout time.Duration) DriverOption {
	return func(c *config) {
		if timeout > 0 {
			c.auxWait = timeout
		}
	}
}

// WithInitialMode drives the control lines to the given mode during New, so
// the cached mode is known from the start.
func WithInitialMode(mode Mode) DriverOption {
	return func(c *config) {
		c.initialMode = mode
	}
}
