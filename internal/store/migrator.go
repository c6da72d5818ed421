package store

import (
	"context"
	"embed"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type Migrator struct {
	store *SqlStore
	log   *zap.Logger
}

func NewMigrator(store *SqlStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

// Up applies every script in source whose version is above the database's
// user_version. Each script sets user_version itself.
func (m *Migrator) Up(ctx context.Context, source embed.FS) error {
	list, err := source.ReadDir(".")
	if err != nil {
		return err
	}
	var scripts []string
	for _, f := range list {
		if strings.HasSuffix(f.Name(), ".sql") {
			scripts = append(scripts, f.Name())
		}
	}
	if len(scripts) == 0 {
		return nil
	}
	sort.Strings(scripts)

	current, err := m.store.userVersion()
	if err != nil {
		return err
	}
	final, err := scriptVersion(scripts[len(scripts)-1])
	if err != nil {
		return err
	}
	if final > current {
		m.log.Info("Bringing up store migrations", zap.Int("migration_count", final-current))
	}

	for _, n := range scripts {
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}
		// re-read so an out of order script is never applied over a newer one
		c, err := m.store.userVersion()
		if err != nil {
			return err
		}
		if v <= c {
			continue
		}

		m.log.Debug("Executing store migration", zap.String("migration_name", n))
		b, err := source.ReadFile(n)
		if err != nil {
			return err
		}
		if err := m.store.execTrans(ctx, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// scriptVersion extracts 2 from a name like "0002_create_regions.sql".
func scriptVersion(filename string) (int, error) {
	return strconv.Atoi(strings.Split(filename, "_")[0])
}
