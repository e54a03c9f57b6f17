package migrations

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/supplai-io/supplai/internal/database/migrations")
}

type Migrations struct {
	Migrations  []*gormigrate.Migration
	GormOptions *gormigrate.Options
}

func (m *Migrations) Migrate(ctx context.Context, db *gorm.DB) error {
	_, span := tracer.Start(ctx, "Migrate")
	defer span.End()
	return gormigrate.New(db.WithContext(ctx), m.GormOptions, m.Migrations).Migrate()
}

// MigrateTo applies migrations up to and including migrationID.  Mainly useful in tests
// that need the schema as it was at a given point.
func (m *Migrations) MigrateTo(ctx context.Context, db *gorm.DB, migrationID string) error {
	_, span := tracer.Start(ctx, "MigrateTo")
	defer span.End()
	return gormigrate.New(db.WithContext(ctx), m.GormOptions, m.Migrations).MigrateTo(migrationID)
}

func (m *Migrations) RollbackLast(ctx context.Context, db *gorm.DB) error {
	_, span := tracer.Start(ctx, "RollbackLast")
	defer span.End()

	gm := gormigrate.New(db.WithContext(ctx), m.GormOptions, m.Migrations)
	if err := gm.RollbackLast(); err != nil {
		return err
	}
	return m.deleteMigrationTableIfEmpty(db)
}

// RollbackAll rolls back every applied migration.
func (m *Migrations) RollbackAll(ctx context.Context, db *gorm.DB) error {
	_, span := tracer.Start(ctx, "RollbackAll")
	defer span.End()

	gm := gormigrate.New(db.WithContext(ctx), m.GormOptions, m.Migrations)
	for {
		count, err := m.CountMigrationsApplied(db)
		if err != nil {
			return err
		}
		if count == 0 {
			break
		}
		if err := gm.RollbackLast(); err != nil {
			return err
		}
	}
	return m.deleteMigrationTableIfEmpty(db)
}

func (m *Migrations) deleteMigrationTableIfEmpty(db *gorm.DB) error {
	if !db.Migrator().HasTable(m.GormOptions.TableName) {
		return nil
	}
	result, err := m.CountMigrationsApplied(db)
	if err != nil {
		return err
	}
	if result == 0 {
		if err := db.Migrator().DropTable(m.GormOptions.TableName); err != nil {
			return fmt.Errorf("could not drop migration table: %w", err)
		}
	}
	return nil
}

func (m *Migrations) CountMigrationsApplied(db *gorm.DB) (int, error) {
	if !db.Migrator().HasTable(m.GormOptions.TableName) {
		return 0, nil
	}
	sql := fmt.Sprintf("SELECT count(%s) FROM %s", m.GormOptions.IDColumnName, m.GormOptions.TableName)
	var count int
	if err := db.Raw(sql).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MigrationAction applies a schema change when apply is true and reverts it otherwise.
type MigrationAction func(tx *gorm.DB, apply bool) error

func callerInfo() string {
	if _, file, no, ok := runtime.Caller(2); ok {
		return fmt.Sprintf("[ %s:%d ]", file, no)
	}
	return ""
}

func CreateTableAction(table interface{}) MigrationAction {
	caller := callerInfo()
	return func(tx *gorm.DB, apply bool) error {
		var err error
		if apply {
			err = tx.AutoMigrate(table)
		} else {
			err = tx.Migrator().DropTable(table)
		}
		return errors.Wrap(err, caller)
	}
}

func AddTableColumnsAction(table interface{}) MigrationAction {
	caller := callerInfo()
	return func(tx *gorm.DB, apply bool) error {
		stmt := &gorm.Statement{DB: tx}
		if err := stmt.Parse(table); err != nil {
			return errors.Wrap(err, caller)
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" {
				continue
			}
			var err error
			if apply {
				err = tx.Migrator().AddColumn(table, field.DBName)
			} else {
				err = tx.Migrator().DropColumn(table, field.DBName)
			}
			if err != nil {
				return errors.Wrap(err, caller)
			}
		}
		return nil
	}
}

func CreateIndexAction(table interface{}, name string) MigrationAction {
	caller := callerInfo()
	return func(tx *gorm.DB, apply bool) error {
		var err error
		if apply {
			err = tx.Migrator().CreateIndex(table, name)
		} else {
			err = tx.Migrator().DropIndex(table, name)
		}
		return errors.Wrap(err, caller)
	}
}

func ExecAction(applySql string, unapplySql string) MigrationAction {
	caller := callerInfo()
	return func(tx *gorm.DB, apply bool) error {
		sql := unapplySql
		if apply {
			sql = applySql
		}
		if sql == "" {
			return nil
		}
		return errors.Wrap(tx.Exec(sql).Error, caller)
	}
}

func CreateMigrationFromActions(id string, actions ...MigrationAction) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(tx *gorm.DB) error {
			for _, action := range actions {
				if err := action(tx, true); err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for i := len(actions) - 1; i >= 0; i-- {
				if err := actions[i](tx, false); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
