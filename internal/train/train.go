// Package train runs inner optimisation: a task trained by one optimizer for
// a fixed number of steps.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tasks"
)

// ErrDiverged is returned when the loss becomes NaN or infinite.
var ErrDiverged = errors.New("training diverged")

// Config controls a training run.
type Config struct {
	Steps    int    // default: 100
	LogEvery int    // log every N steps, 0 disables logging
	Seed     uint64 // seeds both the task initialisation and the data stream
}

func (c Config) withDefaults() Config {
	if c.Steps == 0 {
		c.Steps = 100
	}
	return c
}

// Result is the outcome of Run.
type Result struct {
	Task      string
	Optimizer string
	Losses    []float32 // loss before each update
	LRs       []float32 // learning rate per update, if the optimizer reports one
	FinalLoss float32   // loss at the final parameters, +Inf if Diverged
	Final     optim.State
	Duration  time.Duration

	// Diverged is set when the loss or the gradients became non-finite.
	// Losses then holds the finite losses seen before that step.
	Diverged bool
}

// diverge marks res as diverged at the state reached so far.
func (r *Result) diverge(state optim.State, start time.Time) {
	r.Diverged = true
	r.FinalLoss = float32(math.Inf(1))
	r.Final = state
	r.Duration = time.Since(start)
}

type lrReporter interface {
	LastLR() float32
}

// Run trains task with opt.
//
// The key derived from cfg.Seed is split once into an init key and a data
// key; the data key is split again every step, so two optimizers run with the
// same seed see exactly the same batches. logger may be nil.
func Run(ctx context.Context, task tasks.Task, opt optim.Optimizer, cfg Config, logger *log.Logger) (*Result, error) {
	cfg = cfg.withDefaults()
	if cfg.Steps < 0 {
		return nil, fmt.Errorf("train: steps must be positive, got %d", cfg.Steps)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	start := time.Now()
	initKey, dataKey := prng.NewKey(cfg.Seed).Split()

	params, modelState, err := task.Init(initKey)
	if err != nil {
		return nil, fmt.Errorf("init task %s: %w", task.Name(), err)
	}
	state, err := opt.Init(params, optim.WithModelState(modelState), optim.WithNumSteps(cfg.Steps))
	if err != nil {
		return nil, fmt.Errorf("init optimizer %s: %w", opt.Name(), err)
	}

	res := &Result{
		Task:      task.Name(),
		Optimizer: opt.Name(),
		Losses:    make([]float32, 0, cfg.Steps),
	}

	for step := 0; step < cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var key prng.Key
		dataKey, key = dataKey.Split()

		loss, grads, nextMS, err := task.LossAndGrad(key, state.GetParams(), state.GetModelState())
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		if !finite(loss) {
			res.diverge(state, start)
			return res, fmt.Errorf("%w at step %d: loss %v", ErrDiverged, step, loss)
		}
		res.Losses = append(res.Losses, loss)

		next, err := opt.Update(state, grads, optim.WithLoss(loss), optim.WithModelState(nextMS))
		if errors.Is(err, optim.ErrNonFinite) {
			res.diverge(state, start)
			return res, fmt.Errorf("%w at step %d: %w", ErrDiverged, step, err)
		}
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		state = next
		if r, ok := state.(lrReporter); ok {
			res.LRs = append(res.LRs, r.LastLR())
		}

		if cfg.LogEvery > 0 && (step%cfg.LogEvery == 0 || step == cfg.Steps-1) {
			logger.Printf("%s/%s step %d loss %.6g", task.Name(), opt.Name(), step, loss)
		}
	}

	_, finalKey := dataKey.Split()
	final, _, _, err := task.LossAndGrad(finalKey, state.GetParams(), state.GetModelState())
	if err != nil {
		return nil, fmt.Errorf("final loss: %w", err)
	}
	if !finite(final) {
		res.diverge(state, start)
		return res, fmt.Errorf("%w after step %d: loss %v", ErrDiverged, cfg.Steps-1, final)
	}
	res.FinalLoss = final
	res.Final = state
	res.Duration = time.Since(start)

	if cfg.LogEvery > 0 {
		logger.Printf("%s/%s done in %v, final loss %.6g", task.Name(), opt.Name(), res.Duration.Round(time.Millisecond), final)
	}
	return res, nil
}

// Compare trains task with each optimizer concurrently, using the same seed
// for all of them. Results are returned in the order of opts.
//
// A diverged run is kept with Result.Diverged set and does not affect the
// others. Any other failure cancels the remaining runs.
func Compare(ctx context.Context, task tasks.Task, opts []optim.Optimizer, cfg Config, logger *log.Logger) ([]*Result, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	results := make([]*Result, len(opts))
	g, ctx := errgroup.WithContext(ctx)
	for i, opt := range opts {
		g.Go(func() error {
			res, err := Run(ctx, task, opt, cfg, logger)
			if errors.Is(err, ErrDiverged) && res != nil {
				logger.Printf("%s/%s %v", task.Name(), opt.Name(), err)
				results[i] = res
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", opt.Name(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
