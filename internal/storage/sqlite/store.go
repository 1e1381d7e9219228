// Package sqlite provides a SQLite-backed run log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/born-ml/lopt/internal/storage"
	"github.com/born-ml/lopt/internal/storage/sqlite/migrations"
	"github.com/born-ml/lopt/internal/storage/sqlitemigrate"
)

// Store persists runs in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite run log and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveRun implements storage.RunStore.
func (s *Store) SaveRun(ctx context.Context, run storage.Run) (storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return storage.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Run{}, fmt.Errorf("storage is not configured")
	}
	run.Task = strings.TrimSpace(run.Task)
	run.Optimizer = strings.TrimSpace(run.Optimizer)
	if run.Task == "" {
		return storage.Run{}, fmt.Errorf("task is required")
	}
	if run.Optimizer == "" {
		return storage.Run{}, fmt.Errorf("optimizer is required")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	run.CreatedAt = fromMillis(toMillis(run.CreatedAt))

	// SQLite stores NaN as NULL.
	finalLoss := float64(run.FinalLoss)
	if math.IsNaN(finalLoss) {
		finalLoss = math.Inf(1)
	}

	losses, err := json.Marshal(nonNil(run.Losses))
	if err != nil {
		return storage.Run{}, fmt.Errorf("encode losses: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO runs (
		   id,
		   task,
		   optimizer,
		   seed,
		   steps,
		   final_loss,
		   losses,
		   theta_path,
		   diverged,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.Task,
		run.Optimizer,
		int64(run.Seed), //nolint:gosec // stored bit-for-bit, read back as uint64
		run.Steps,
		finalLoss,
		string(losses),
		run.ThetaPath,
		run.Diverged,
		toMillis(run.CreatedAt),
	)
	if err != nil {
		if isRunUniqueViolation(err) {
			return storage.Run{}, storage.ErrAlreadyExists
		}
		return storage.Run{}, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

const runColumns = `id, task, optimizer, seed, steps, final_loss, losses, theta_path, diverged, created_at`

// GetRun implements storage.RunStore.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return storage.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Run{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Run{}, storage.ErrNotFound
		}
		return storage.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns implements storage.RunStore.
func (s *Store) ListRuns(ctx context.Context, task string) ([]storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	task = strings.TrimSpace(task)

	var (
		rows *sql.Rows
		err  error
	)
	if task == "" {
		rows, err = s.sqlDB.QueryContext(ctx,
			`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id ASC`)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx,
			`SELECT `+runColumns+` FROM runs WHERE task = ? ORDER BY created_at DESC, id ASC`, task)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (storage.Run, error) {
	var (
		run       storage.Run
		id        string
		seed      int64
		finalLoss float64
		losses    string
		createdAt int64
	)
	if err := row.Scan(
		&id,
		&run.Task,
		&run.Optimizer,
		&seed,
		&run.Steps,
		&finalLoss,
		&losses,
		&run.ThetaPath,
		&run.Diverged,
		&createdAt,
	); err != nil {
		return storage.Run{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return storage.Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(losses), &run.Losses); err != nil {
		return storage.Run{}, fmt.Errorf("decode losses of run %s: %w", id, err)
	}
	run.ID = parsed
	run.Seed = uint64(seed) //nolint:gosec // stored bit-for-bit
	run.FinalLoss = float32(finalLoss)
	run.CreatedAt = fromMillis(createdAt)
	return run, nil
}

func nonNil(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}

func isRunUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") && strings.Contains(message, "runs.id")
}

var _ storage.RunStore = (*Store)(nil)
