package migration_20261012_0000

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	. "github.com/supplai-io/supplai/internal/database/migrations"
)

type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type User struct {
	Base
	Email           string `gorm:"uniqueIndex"`
	FullName        string
	PasswordHash    string
	EmailVerifiedAt *time.Time
}

type Organization struct {
	Base
	OwnerID uuid.UUID `gorm:"type:uuid"`
	Name    string
	Slug    string `gorm:"uniqueIndex"`
}

type Membership struct {
	UserID         uuid.UUID `gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID `gorm:"type:uuid;primary_key"`
	Role           string    `gorm:"not null;default:member"`
	CreatedAt      time.Time
}

type Supplier struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_suppliers_org_email"`
	Name           string
	Email          string `gorm:"uniqueIndex:idx_suppliers_org_email"`
	Phone          string
	Notes          string
}

type Order struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	CreatedByID    uuid.UUID `gorm:"type:uuid"`
	Reference      string
	Notes          string
	DeliveryDate   *time.Time
}

type SupplierOrder struct {
	Base
	OrderID        uuid.UUID `gorm:"type:uuid;index"`
	OrganizationID uuid.UUID `gorm:"type:uuid"`
	SupplierID     uuid.UUID `gorm:"type:uuid"`
	Items          string    `gorm:"type:text"`
	Status         string    `gorm:"not null;default:pending"`
	SentAt         *time.Time
}

func Migrate() *gormigrate.Migration {
	migrationId := "20261012-0000"
	return CreateMigrationFromActions(migrationId,
		CreateTableAction(&User{}),
		CreateTableAction(&Organization{}),
		CreateTableAction(&Membership{}),
		CreateTableAction(&Supplier{}),
		CreateTableAction(&Order{}),
		CreateTableAction(&SupplierOrder{}),
		ExecAction(
			`CREATE INDEX IF NOT EXISTS idx_memberships_organization_id ON memberships (organization_id)`,
			`DROP INDEX IF EXISTS idx_memberships_organization_id`,
		),
	)
}
