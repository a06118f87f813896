package app

import (
	"fmt"

	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/internal/auth/store/drivers/postgres"
	"github.com/memberhub/memberhub/internal/auth/store/drivers/sqlite"
)

// sqliteDSN enables WAL and takes the write lock at BEGIN so that concurrent
// resets queue instead of failing with SQLITE_BUSY on upgrade.
func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate", path)
}

// OpenStore opens the configured driver and applies pending migrations.
func OpenStore(cfg Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.DatabaseDriver {
	case DriverPostgres:
		st, err = postgres.NewStore(cfg.DatabaseURL)
	case DriverSQLite:
		st, err = sqlite.NewStore(sqliteDSN(cfg.DatabaseFile))
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return st, nil
}
