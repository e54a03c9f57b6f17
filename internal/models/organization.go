package models

import (
	"github.com/google/uuid"
)

// Organization is the tenant.  Suppliers, orders and memberships all belong to one Organization.
type Organization struct {
	Base
	OwnerID     uuid.UUID     `json:"owner_id" gorm:"type:uuid" example:"aa22666c-0f57-45cb-a449-16efecc04f2e"`
	Name        string        `json:"name" example:"Acme Bakery"`
	Slug        string        `json:"slug" gorm:"uniqueIndex" example:"acme-bakery"`
	Memberships []*Membership `json:"-"`
}

// AddOrganization is the information needed to create an Organization
type AddOrganization struct {
	Name string `json:"name" form:"name" example:"Acme Bakery"`
}

// OrganizationWithRole is an Organization as seen by one of its members
type OrganizationWithRole struct {
	Organization
	Role Role `json:"role" example:"admin"`
}
