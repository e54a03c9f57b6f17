package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Allows reports whether r is one of the allowed roles.  It is the single place role gating decisions are made.
func (r Role) Allows(allowed ...Role) bool {
	return slices.Contains(allowed, r)
}

// Capabilities lists what a role can do inside its organization
type Capabilities struct {
	CreateOrders    bool `json:"create_orders"`
	ManageSuppliers bool `json:"manage_suppliers"`
	ManageMembers   bool `json:"manage_members"`
}

func (r Role) Capabilities() Capabilities {
	return Capabilities{
		CreateOrders:    r.Allows(RoleAdmin, RoleMember),
		ManageSuppliers: r.Allows(RoleAdmin),
		ManageMembers:   r.Allows(RoleAdmin),
	}
}

// Membership record means the user is a member of the organization with the given role
type Membership struct {
	UserID         uuid.UUID     `json:"user_id" gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID     `json:"organization_id" gorm:"type:uuid;primary_key"`
	Role           Role          `json:"role" example:"member"`
	CreatedAt      time.Time     `json:"created_at"`
	User           *User         `json:"user,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`
}

// CurrentMembership describes the role of the current user in an organization
type CurrentMembership struct {
	OrganizationID uuid.UUID    `json:"organization_id"`
	Slug           string       `json:"slug"`
	Role           Role         `json:"role"`
	Capabilities   Capabilities `json:"capabilities"`
}

// UpdateMembership is used to change the role of a member
type UpdateMembership struct {
	Role Role `json:"role" example:"admin"`
}
