package models

import (
	"github.com/google/uuid"
)

// Supplier is a business an Organization sends orders to.
type Supplier struct {
	Base
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;uniqueIndex:idx_suppliers_org_email"`
	Name           string    `json:"name" example:"Fresh Farms"`
	Email          string    `json:"email" gorm:"uniqueIndex:idx_suppliers_org_email" example:"orders@freshfarms.example"`
	Phone          string    `json:"phone" example:"+1 555 0100"`
	Notes          string    `json:"notes"`
}

// AddSupplier is the information needed to add a Supplier
type AddSupplier struct {
	Name  string `json:"name" form:"name" example:"Fresh Farms"`
	Email string `json:"email" form:"email" example:"orders@freshfarms.example"`
	Phone string `json:"phone" form:"phone"`
	Notes string `json:"notes" form:"notes"`
}
