package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbgorm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TransactionFunc func(
	ctx context.Context, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions,
) error

func Silent(db *gorm.DB) *gorm.DB {
	return db.Session(&gorm.Session{
		Logger: db.Logger.LogMode(logger.Silent),
	})
}

type Dialect int

const (
	DialectSqlLite Dialect = iota
	DialectPostgreSQL
	DialectCockroachDB
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgreSQL:
		return "postgresql"
	case DialectCockroachDB:
		return "cockroachdb"
	default:
		return "sqlite"
	}
}

// DetectDialect asks the server for its version.  Servers that don't know version() are assumed to be SQLite.
func DetectDialect(db *gorm.DB) Dialect {
	version := ""
	_ = Silent(db).Raw("SELECT version()").Scan(&version).Error

	switch {
	case strings.HasPrefix(version, "PostgreSQL"):
		return DialectPostgreSQL
	case strings.HasPrefix(version, "CockroachDB"):
		return DialectCockroachDB
	default:
		return DialectSqlLite
	}
}

// GetTransactionFunc returns a function that runs fn in a transaction, retrying serialization
// failures when the database is CockroachDB.
func GetTransactionFunc(db *gorm.DB) (TransactionFunc, Dialect, error) {
	dialect := DetectDialect(db)
	if dialect == DialectCockroachDB {
		return func(ctx context.Context, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
			var o *sql.TxOptions
			if len(opts) > 0 {
				o = opts[0]
			}
			return crdbgorm.ExecuteTx(ctx, db, o, fn)
		}, dialect, nil
	}
	return func(ctx context.Context, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
		var o *sql.TxOptions
		if len(opts) > 0 {
			o = opts[0]
		}
		return db.WithContext(ctx).Transaction(fn, o)
	}, dialect, nil
}
