// Package migrate applies the goose SQL migrations shipped with the service.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the source tree location used by create and validate.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrator wraps a goose provider bound to one database. It does not own the
// connection.
type Migrator struct {
	provider *goose.Provider
}

// Applied is one migration step that ran.
type Applied struct {
	Version   int64
	Path      string
	Direction string
	Duration  time.Duration
}

// State is the applied state of one known migration.
type State struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// New reads migrations from dir, or from the embedded set when dir is empty.
func New(db *sql.DB, dialect, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dialect == "" {
		return nil, errors.New("dialect is required")
	}
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.Dialect(dialect), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: p}, nil
}

func source(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return sub, nil
}

// Up applies the embedded migrations. It is what services run at startup.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	m, err := New(db, dialect, "")
	if err != nil {
		return err
	}
	_, err = m.Up(ctx)
	return err
}

func (m *Migrator) Up(ctx context.Context) ([]Applied, error) {
	res, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return applied(res), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) ([]Applied, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return applied([]*goose.MigrationResult{res}), nil
}

// To moves the schema up or down until version is the latest applied one.
func (m *Migrator) To(ctx context.Context, version int64) ([]Applied, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	var res []*goose.MigrationResult
	switch {
	case version == current:
		return nil, nil
	case version > current:
		res, err = m.provider.UpTo(ctx, version)
	default:
		res, err = m.provider.DownTo(ctx, version)
	}
	if err != nil {
		return nil, fmt.Errorf("goose migrate to %d: %w", version, err)
	}
	return applied(res), nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

func (m *Migrator) Status(ctx context.Context) ([]State, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]State, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, State{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func applied(results []*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Applied{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Duration:  r.Duration,
		})
	}
	return out
}
