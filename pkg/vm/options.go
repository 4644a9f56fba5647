package vm

import (
	"log/slog"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/logger"
)

const (
	// DefaultStepBudget is the number of statements and loop iterations an
	// instance may execute within one tick, summed over every Advance call
	// made at that tick.
	DefaultStepBudget = 10000

	// DefaultMaxCallDepth bounds nested user function calls.
	DefaultMaxCallDepth = 64

	// DefaultMicrosPerTick is the length of one tick when the host does not
	// say otherwise.
	DefaultMicrosPerTick = 1000
)

type config struct {
	log           *slog.Logger
	host          bridge.Host
	stepBudget    int
	maxCallDepth  int
	microsPerTick int64
}

func defaultConfig() config {
	return config{
		log:           logger.GetLogger(),
		host:          bridge.NopHost{},
		stepBudget:    DefaultStepBudget,
		maxCallDepth:  DefaultMaxCallDepth,
		microsPerTick: DefaultMicrosPerTick,
	}
}

// Option is a functional option for configuring a Patch and the instances
// running on it.
type Option func(*config)

// WithLogger sets the logger handed to Bridge calls and used for faults.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHost sets the engine the Bridge functions act on.
func WithHost(h bridge.Host) Option {
	return func(c *config) {
		if h != nil {
			c.host = h
		}
	}
}

// WithStepBudget sets the per-tick step budget of an instance.
func WithStepBudget(steps int) Option {
	return func(c *config) {
		if steps > 0 {
			c.stepBudget = steps
		}
	}
}

// WithMaxCallDepth sets the maximum user function nesting.
func WithMaxCallDepth(depth int) Option {
	return func(c *config) {
		if depth > 0 {
			c.maxCallDepth = depth
		}
	}
}

// WithMicrosPerTick sets the tick length used to convert time values.
func WithMicrosPerTick(us int64) Option {
	return func(c *config) {
		if us > 0 {
			c.microsPerTick = us
		}
	}
}
