// Package lopt parses lopt command flags and runs its subcommands.
package lopt

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/born-ml/lopt/internal/checkpoint"
	learned "github.com/born-ml/lopt/internal/lopt"
	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/storage"
	"github.com/born-ml/lopt/internal/storage/sqlite"
	"github.com/born-ml/lopt/internal/tasks"
	"github.com/born-ml/lopt/internal/train"
	"github.com/born-ml/lopt/internal/tree"
)

// Version is reported by the version subcommand.
const Version = "v0.1.0"

// AllOptimizers selects every baseline and learned optimizer.
const AllOptimizers = "all"

// Subcommands.
const (
	CommandTrain   = "train"
	CommandInit    = "init"
	CommandList    = "list"
	CommandRuns    = "runs"
	CommandVersion = "version"
)

// Config holds lopt command configuration.
type Config struct {
	Command   string
	Task      string `env:"LOPT_TASK" envDefault:"quadratic"`
	Optimizer string `env:"LOPT_OPTIMIZER" envDefault:"all"`
	Steps     int    `env:"LOPT_STEPS" envDefault:"200"`
	Seed      uint64 `env:"LOPT_SEED" envDefault:"0"`
	LogEvery  int    `env:"LOPT_LOG_EVERY" envDefault:"0"`
	Theta     string `env:"LOPT_THETA"`
	SaveTheta string `env:"LOPT_SAVE_THETA"`
	DB        string `env:"LOPT_DB"`
}

// ParseConfig parses environment and flags into Config. The first
// positional argument selects the subcommand, train by default.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Task, "task", cfg.Task, "inner task: "+strings.Join(tasks.Names(), ", "))
	fs.StringVar(&cfg.Optimizer, "optimizer", cfg.Optimizer, "optimizer name, or \"all\"")
	fs.IntVar(&cfg.Steps, "steps", cfg.Steps, "inner training steps")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "seed for theta initialisation and the task data stream")
	fs.IntVar(&cfg.LogEvery, "log-every", cfg.LogEvery, "log the loss every N steps (0 = off)")
	fs.StringVar(&cfg.Theta, "theta", cfg.Theta, "load theta from this checkpoint")
	fs.StringVar(&cfg.SaveTheta, "save-theta", cfg.SaveTheta, "write the theta used to this checkpoint")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "SQLite run log path (empty = do not record)")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	switch fs.NArg() {
	case 0:
		cfg.Command = CommandTrain
	case 1:
		cfg.Command = fs.Arg(0)
	default:
		return Config{}, fmt.Errorf("expected at most one subcommand, got %q", fs.Args())
	}
	return cfg, nil
}

// Run executes the configured subcommand, writing results to out and
// progress to logger.
func Run(ctx context.Context, cfg Config, out io.Writer, logger *log.Logger) error {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	switch cfg.Command {
	case CommandTrain, "":
		return runTrain(ctx, cfg, out, logger)
	case CommandInit:
		return runInit(cfg, out)
	case CommandList:
		return runList(out)
	case CommandRuns:
		return runRuns(ctx, cfg, out)
	case CommandVersion:
		_, err := fmt.Fprintf(out, "lopt %s\n", Version)
		return err
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

func runList(out io.Writer) error {
	fmt.Fprintln(out, "Tasks:")
	for _, n := range tasks.Names() {
		fmt.Fprintf(out, "  %s\n", n)
	}
	fmt.Fprintln(out, "Learned optimizers:")
	for _, n := range learned.Names() {
		fmt.Fprintf(out, "  %s\n", n)
	}
	fmt.Fprintln(out, "Baselines:")
	for _, n := range optim.BaselineNames() {
		fmt.Fprintf(out, "  %s\n", n)
	}
	return nil
}

func runInit(cfg Config, out io.Writer) error {
	if cfg.SaveTheta == "" {
		return errors.New("init: -save-theta is required")
	}
	lo, err := learned.New(cfg.Optimizer)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	theta, err := lo.Init(prng.NewKey(cfg.Seed))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := saveTheta(cfg, lo.Name(), theta); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %s theta (%d values) to %s\n", lo.Name(), theta.NumElements(), cfg.SaveTheta)
	return err
}

// entry is one optimizer selected for training.
type entry struct {
	opt       optim.Optimizer
	thetaPath string
}

func runTrain(ctx context.Context, cfg Config, out io.Writer, logger *log.Logger) error {
	task, err := tasks.ByName(cfg.Task)
	if err != nil {
		return err
	}
	entries, err := selectOptimizers(cfg)
	if err != nil {
		return err
	}

	opts := make([]optim.Optimizer, len(entries))
	for i, e := range entries {
		opts[i] = e.opt
	}
	results, err := train.Compare(ctx, task, opts, train.Config{
		Steps:    cfg.Steps,
		LogEvery: cfg.LogEvery,
		Seed:     cfg.Seed,
	}, logger)
	if err != nil {
		return err
	}

	if err := printResults(out, results); err != nil {
		return err
	}
	if cfg.DB == "" {
		return nil
	}
	return recordRuns(ctx, cfg, entries, results, logger)
}

// selectOptimizers resolves cfg.Optimizer into bound optimizers.
func selectOptimizers(cfg Config) ([]entry, error) {
	var names []string
	if cfg.Optimizer == AllOptimizers {
		if cfg.Theta != "" || cfg.SaveTheta != "" {
			return nil, errors.New("-theta and -save-theta need a single learned optimizer")
		}
		names = append(optim.BaselineNames(), learned.Names()...)
	} else {
		names = []string{cfg.Optimizer}
	}

	entries := make([]entry, 0, len(names))
	for _, name := range names {
		if base, err := optim.Baseline(name); err == nil {
			if cfg.Theta != "" || cfg.SaveTheta != "" {
				return nil, fmt.Errorf("%s has no theta", name)
			}
			entries = append(entries, entry{opt: base})
			continue
		}

		lo, err := learned.New(name)
		if err != nil {
			return nil, err
		}
		theta, err := loadOrInitTheta(cfg, lo)
		if err != nil {
			return nil, err
		}
		opt, err := lo.Optimizer(theta)
		if err != nil {
			return nil, err
		}
		if cfg.SaveTheta != "" {
			if err := saveTheta(cfg, lo.Name(), theta); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry{opt: opt, thetaPath: cfg.Theta})
	}
	return entries, nil
}

func loadOrInitTheta(cfg Config, lo learned.LearnedOptimizer) (tree.Tree, error) {
	if cfg.Theta == "" {
		return lo.Init(prng.NewKey(cfg.Seed))
	}
	theta, _, err := checkpoint.LoadFor(cfg.Theta, lo.Name())
	if err != nil {
		return nil, fmt.Errorf("load theta: %w", err)
	}
	return theta, nil
}

func saveTheta(cfg Config, name string, theta tree.Tree) error {
	meta := checkpoint.Meta{
		Optimizer: name,
		Metadata:  map[string]string{"seed": strconv.FormatUint(cfg.Seed, 10)},
	}
	if cfg.Theta != "" {
		meta.Metadata["source"] = cfg.Theta
	}
	if err := checkpoint.Save(cfg.SaveTheta, theta, meta); err != nil {
		return fmt.Errorf("save theta: %w", err)
	}
	return nil
}

func printResults(out io.Writer, results []*train.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPTIMIZER\tINITIAL LOSS\tFINAL LOSS\tMEAN LR\tTIME")
	for _, r := range results {
		initial := float32(0)
		if len(r.Losses) > 0 {
			initial = r.Losses[0]
		}
		lr := "-"
		if len(r.LRs) > 0 {
			var sum float64
			for _, v := range r.LRs {
				sum += float64(v)
			}
			lr = strconv.FormatFloat(sum/float64(len(r.LRs)), 'g', 4, 64)
		}
		fmt.Fprintf(tw, "%s\t%.6g\t%s\t%s\t%v\n", r.Optimizer, initial, finalLoss(r.FinalLoss, r.Diverged, len(r.Losses)), lr, r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func finalLoss(loss float32, diverged bool, steps int) string {
	if diverged {
		return fmt.Sprintf("diverged at step %d", steps)
	}
	return strconv.FormatFloat(float64(loss), 'g', 6, 32)
}

func recordRuns(ctx context.Context, cfg Config, entries []entry, results []*train.Result, logger *log.Logger) (err error) {
	store, err := sqlite.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for i, r := range results {
		run, err := store.SaveRun(ctx, storage.Run{
			Task:      r.Task,
			Optimizer: r.Optimizer,
			Seed:      cfg.Seed,
			Steps:     len(r.Losses),
			FinalLoss: r.FinalLoss,
			Losses:    r.Losses,
			ThetaPath: entries[i].thetaPath,
			Diverged:  r.Diverged,
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", r.Optimizer, err)
		}
		logger.Printf("recorded run %s (%s/%s)", run.ID, run.Task, run.Optimizer)
	}
	return nil
}

func runRuns(ctx context.Context, cfg Config, out io.Writer) (err error) {
	if cfg.DB == "" {
		return errors.New("runs: -db is required")
	}
	store, err := sqlite.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	task := cfg.Task
	if task == AllOptimizers {
		task = ""
	}
	runs, err := store.ListRuns(ctx, task)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tOPTIMIZER\tSEED\tSTEPS\tFINAL LOSS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Task, r.Optimizer, r.Seed, r.Steps, finalLoss(r.FinalLoss, r.Diverged, r.Steps), r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
