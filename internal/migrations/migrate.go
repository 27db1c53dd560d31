// Package migrations applies the goose SQL migrations that define the
// materials catalog and fee template schema.
package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const sqliteDialect = "sqlite3"

// Migrator runs schema migrations from a directory of goose SQL files.
type Migrator struct {
	dir string
	log *zap.Logger
}

// New returns a migrator for dir. goose output is routed to log.
func New(dir string, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{dir: dir, log: log}
}

// Up applies every pending migration and returns the resulting schema version.
func (m *Migrator) Up(db *sql.DB) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}

	if err := goose.Up(db, m.dir); err != nil {
		return 0, fmt.Errorf("apply migrations from %s: %w", m.dir, err)
	}

	return m.Version(db)
}

// Version returns the schema version recorded in the goose table.
func (m *Migrator) Version(db *sql.DB) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (m *Migrator) prepare() error {
	goose.SetLogger(gooseLogger{m.log.Sugar()})
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Up applies pending migrations from dir without logging.
func Up(db *sql.DB, dir string) error {
	_, err := New(dir, nil).Up(db)
	return err
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }
