package herder

import (
	"github.com/jixianzhao/TCPHandoff/internal/observability"
)

// config is the resolved configuration for NewPool, built up from Option
// values.
type config struct {
	cpus          []int
	maxEvents     int
	logger        *observability.Logger
	warnRateLimit int
	handler       func(EventJob)
}

// Option configures a Pool at construction time.
type Option func(*config)

// WithCPUs sets the set of CPU identities to create one herder per.
// Required: NewPool returns ErrNoHerders if empty.
func WithCPUs(cpus []int) Option {
	return func(c *config) {
		c.cpus = append([]int(nil), cpus...)
	}
}

// WithMaxEventsPerWait bounds how many ready events a single herder drains
// per Wait call. Defaults to 1024.
func WithMaxEventsPerWait(n int) Option {
	return func(c *config) {
		c.maxEvents = n
	}
}

// WithLogger injects the structured logger used for dispatch/poll/teardown
// diagnostics.
func WithLogger(l *observability.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithDropWarningRateLimit bounds how many "worker pool full, dropping
// event" warnings a single herder logs per second.
func WithDropWarningRateLimit(perSecond int) Option {
	return func(c *config) {
		c.warnRateLimit = perSecond
	}
}

// WithEventHandler sets the function invoked, inside the worker pool, for
// every dispatched EventJob. Request processing itself (HTTP parsing,
// upstream selection) is out of scope; this hook is the seam a caller wires
// its own processing into. Defaults to a no-op.
func WithEventHandler(fn func(EventJob)) Option {
	return func(c *config) {
		c.handler = fn
	}
}

func resolveConfig(opts []Option) *config {
	c := &config{
		maxEvents:     1024,
		warnRateLimit: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.New(nil)
	}
	if c.handler == nil {
		c.handler = func(EventJob) {}
	}
	return c
}
