package scheduler

import (
	"log/slog"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/logger"
	"github.com/zurustar/instrscript/pkg/vm"
)

// DefaultPoolSize is the number of instances allocated up front.
const DefaultPoolSize = 64

type config struct {
	log      *slog.Logger
	poolSize int
	vmOpts   []vm.Option
}

// Option configures a Scheduler.
type Option func(*config)

// WithLogger sets the logger for the scheduler and every patch it loads.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log == nil {
			return
		}
		c.log = log
		c.vmOpts = append(c.vmOpts, vm.WithLogger(log))
	}
}

// WithHost sets the engine the built-in functions talk to.
func WithHost(h bridge.Host) Option {
	return func(c *config) {
		c.vmOpts = append(c.vmOpts, vm.WithHost(h))
	}
}

// WithStepBudget bounds the statements one instance may run per cycle.
func WithStepBudget(n int) Option {
	return func(c *config) {
		c.vmOpts = append(c.vmOpts, vm.WithStepBudget(n))
	}
}

// WithMaxCallDepth bounds nested user function calls.
func WithMaxCallDepth(n int) Option {
	return func(c *config) {
		c.vmOpts = append(c.vmOpts, vm.WithMaxCallDepth(n))
	}
}

// WithMicrosPerTick sets the tick length used to convert time values.
func WithMicrosPerTick(us int64) Option {
	return func(c *config) {
		c.vmOpts = append(c.vmOpts, vm.WithMicrosPerTick(us))
	}
}

// WithPoolSize sets how many instances are allocated up front.
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

func defaultConfig() config {
	return config{
		log:      logger.GetLogger(),
		poolSize: DefaultPoolSize,
	}
}
