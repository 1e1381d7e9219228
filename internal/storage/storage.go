// Package storage defines the run log: a record of every inner training run
// and how each optimizer did on it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates a requested run does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a run with the same id is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// Run is one inner training run.
type Run struct {
	ID        uuid.UUID
	Task      string
	Optimizer string
	Seed      uint64
	Steps     int
	FinalLoss float32
	Losses    []float32
	ThetaPath string // checkpoint the optimizer was bound to, empty for baselines and fresh thetas
	Diverged  bool   // the loss became non-finite before Steps updates
	CreatedAt time.Time
}

// RunStore persists runs.
type RunStore interface {
	// SaveRun stores run. A zero ID or CreatedAt is filled in; the stored
	// record is returned.
	SaveRun(ctx context.Context, run Run) (Run, error)
	// GetRun returns the run with id or ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns runs for task, newest first. An empty task lists all.
	ListRuns(ctx context.Context, task string) ([]Run, error)
}
