package postgres

import (
	"database/sql"
	goerrors "errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/migrations"
	"github.com/loanlens/loanlens/pkg/errors"
)

// Migrator applies the embedded schema migrations over the shared pool.
// Closing the Migrator does not close the pool.
type Migrator struct {
	m   *migrate.Migrate
	db  *sql.DB
	log logging.Logger
}

// NewMigrator builds a Migrator from an open Connection.
func NewMigrator(conn *Connection, log logging.Logger) (*Migrator, error) {
	db := stdlib.OpenDBFromPool(conn.Pool())

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "create migration driver")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "open embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "create migrate instance")
	}

	return &Migrator{m: m, db: db, log: log}, nil
}

// Up applies all pending migrations. An already-current schema is not an
// error.
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil {
		if goerrors.Is(err, migrate.ErrNoChange) {
			g.log.Info("database schema already current")
			return nil
		}
		version, _, _ := g.m.Version()
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "run migrations (current version %d)", version)
	}

	version, dirty, err := g.m.Version()
	if err != nil && !goerrors.Is(err, migrate.ErrNilVersion) {
		g.log.Warn("migration version unavailable", logging.Err(err))
		return nil
	}
	g.log.Info("database migrations applied",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Rollback undoes the given number of migration steps.
func (g *Migrator) Rollback(steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "rollback steps must be positive, got %d", steps)
	}
	if err := g.m.Steps(-steps); err != nil {
		if goerrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeDatabaseError, "no migrations to roll back")
		}
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "rollback %d step(s)", steps)
	}
	return nil
}

// Status reports the applied version and the dirty flag. A fresh database
// reports version 0, clean.
func (g *Migrator) Status() (version uint, dirty bool, err error) {
	version, dirty, err = g.m.Version()
	if err != nil {
		if goerrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "read migration version")
	}
	return version, dirty, nil
}

// Force overwrites the recorded version without running migrations. It is
// the recovery path for a dirty schema.
func (g *Migrator) Force(version int) error {
	if err := g.m.Force(version); err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "force version %d", version)
	}
	return nil
}

// Close releases the migration handle and its database connection.
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	closeErr := g.db.Close()
	switch {
	case srcErr != nil:
		return srcErr
	case dbErr != nil:
		return dbErr
	default:
		return closeErr
	}
}
