package graph

// Options configures Engine execution behavior. The zero value is valid:
// no step bound and no metrics.
type Options struct {
	// MaxSteps limits the number of step executions in one run to keep a
	// miswired cyclic graph from looping forever. 0 means no limit.
	MaxSteps int

	metrics *Metrics
}

func defaultOptions() Options {
	return Options{}
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithMaxSteps bounds the number of step executions in a single run.
//
// Loops are legal in the graph (coverage retry routes back to test
// generation), so the engine cannot detect "stuck" by topology alone.
// Size the bound as graph depth times the largest expected loop count.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithMetrics attaches Prometheus collectors that observe step execution.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.metrics = m
	}
}
