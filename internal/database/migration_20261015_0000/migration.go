package migration_20261015_0000

import (
	"github.com/go-gormigrate/gormigrate/v2"

	. "github.com/supplai-io/supplai/internal/database/migrations"
)

// SupplierOrder gains delivery bookkeeping so failed emails can be retried.
type SupplierOrder struct {
	Attempts  int `gorm:"not null;default:0"`
	LastError string
}

type SupplierOrderStatus struct {
	Status string `gorm:"index:idx_supplier_orders_status"`
}

func (SupplierOrderStatus) TableName() string {
	return "supplier_orders"
}

func Migrate() *gormigrate.Migration {
	migrationId := "20261015-0000"
	return CreateMigrationFromActions(migrationId,
		AddTableColumnsAction(&SupplierOrder{}),
		CreateIndexAction(&SupplierOrderStatus{}, "idx_supplier_orders_status"),
	)
}
