// Package store persists the inventory mirror, provider credentials and SSO
// state in SQLite.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/store/migrations"
)

// InmemPath opens a private in-memory database.
const InmemPath = ":memory:"

// SqlStore wraps the database handle. Writers hold Mu for the duration of
// their transaction.
type SqlStore struct {
	Mu   sync.Mutex
	DB   *sqlx.DB
	log  *zap.Logger
	path string
}

// NewSqlStore opens the database at path. Migrations are not applied; see
// Open.
func NewSqlStore(path string, log *zap.Logger) (*SqlStore, error) {
	s := &SqlStore{log: log, path: path}
	if err := s.openDB(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens the database at path and brings its schema up to date.
func Open(ctx context.Context, path string, log *zap.Logger) (*SqlStore, error) {
	s, err := NewSqlStore(path, log)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(s, log).Up(ctx, migrations.AllUp); err != nil {
		s.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return s, nil
}

func (s *SqlStore) openDB() error {
	dsn := "file::memory:?_foreign_keys=on"
	if s.path != InmemPath {
		dsn = s.path + "?_txlock=immediate&_journal=WAL&_sync=NORMAL&_foreign_keys=on"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return err
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("opening %s: %w", s.path, err)
	}
	s.DB = db
	s.log.Debug("Opened sqlite store", zap.String("path", s.path))
	return nil
}

func (s *SqlStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *SqlStore) execTrans(ctx context.Context, stmt string) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SqlStore) userVersion() (int, error) {
	var v int
	err := s.DB.Get(&v, `PRAGMA user_version`)
	return v, err
}
