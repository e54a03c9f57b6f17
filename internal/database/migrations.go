package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/supplai-io/supplai/internal/database/migration_20261012_0000"
	"github.com/supplai-io/supplai/internal/database/migration_20261015_0000"
	"github.com/supplai-io/supplai/internal/database/migrations"
)

// Migrations returns the ordered schema migrations of the supplai database.
// For help writing migration steps, see the gorm documentation on migrations: https://gorm.io/docs/migration.html
func Migrations() *migrations.Migrations {
	return &migrations.Migrations{
		GormOptions: &gormigrate.Options{
			TableName:      "supplai_migrations",
			IDColumnName:   "id",
			IDColumnSize:   40,
			UseTransaction: false,
		},
		Migrations: []*gormigrate.Migration{
			migration_20261012_0000.Migrate(),
			migration_20261015_0000.Migrate(),
		},
	}
}
