package buffer

import "github.com/wippyai/ffi-bridge/handle"

// Option configures a View or an Owned sequence.
type Option func(*options)

type options struct {
	policy handle.Policy
}

// WithPolicy sets the policy applied when the view or sequence is misused.
// Violations are returned as errors by default.
func WithPolicy(p handle.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
