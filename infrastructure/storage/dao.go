package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

// Open connects to the configured database. SQLite is limited to a single
// connection so writers never see "database is locked".
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverMysql, DriverSqlite:
	default:
		return nil, fmt.Errorf("storage.Open driver=%s unsupported", driver)
	}
	xdb, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.Open driver=%s failed cause=%s", driver, err.Error())
	}
	if driver == DriverSqlite {
		xdb.SetMaxOpenConns(1)
	}
	return xdb, nil
}

// Migrate creates missing tables for the connection's driver.
func Migrate(ctx context.Context, xdb *sqlx.DB) error {
	stmts, ok := schemas[xdb.DriverName()]
	if !ok {
		return fmt.Errorf("storage.Migrate driver=%s has no schema", xdb.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := xdb.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage.Migrate failed cause=%s", err.Error())
		}
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
