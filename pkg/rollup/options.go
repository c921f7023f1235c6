package rollup

// DefaultMaxDepth is deep enough to be no practical limit for site hierarchies
const DefaultMaxDepth = 100

// Options controls a rollup pass
type Options struct {
	DirectOnly bool `json:"directOnly"`
	MaxDepth   int  `json:"maxDepth"`
}

// Option is a functional option for Compute
type Option func(*Options)

// WithDirectOnly skips the rollup and returns the base map as is
func WithDirectOnly(directOnly bool) Option {
	return func(o *Options) {
		o.DirectOnly = directOnly
	}
}

// WithMaxDepth stops the rollup at the given depth. Roots are at depth 0;
// locations at or below maxDepth keep their base values. Negative values
// are treated as 0.
func WithMaxDepth(maxDepth int) Option {
	return func(o *Options) {
		o.MaxDepth = max(maxDepth, 0)
	}
}

// NewOptions returns the default options with the given options applied
func NewOptions(opts ...Option) Options {
	o := Options{
		MaxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Apply returns options that reproduce o
func (o Options) Apply() []Option {
	return []Option{WithDirectOnly(o.DirectOnly), WithMaxDepth(o.MaxDepth)}
}
