package optim

import "github.com/born-ml/lopt/internal/tree"

// Options carries the optional arguments of Init and Update.
type Options struct {
	modelState    tree.Tree
	hasModelState bool
	numSteps      int
	loss          float32
	hasLoss       bool
}

// Option configures a single Init or Update call.
type Option func(*Options)

// WithModelState sets the model state. On Init it becomes the initial model
// state; on Update it replaces the stored one.
func WithModelState(ms tree.Tree) Option {
	return func(o *Options) {
		o.modelState = ms
		o.hasModelState = true
	}
}

// WithNumSteps tells Init how many updates the run is expected to take.
func WithNumSteps(n int) Option {
	return func(o *Options) { o.numSteps = n }
}

// WithLoss passes the loss at the current parameters to Update.
func WithLoss(loss float32) Option {
	return func(o *Options) {
		o.loss = loss
		o.hasLoss = true
	}
}

// Collect applies opts in order.
func Collect(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Loss returns the loss and whether one was supplied.
func (o Options) Loss() (float32, bool) { return o.loss, o.hasLoss }

// NumSteps returns the expected run length, 0 if unknown.
func (o Options) NumSteps() int { return o.numSteps }

// ModelState returns the model state and whether one was supplied.
func (o Options) ModelState() (tree.Tree, bool) { return o.modelState, o.hasModelState }
