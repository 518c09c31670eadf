// model/grant.go
package model

// Grant gives a user direct access to a single resource.
type Grant struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Role       string `json:"role"`
}

// Org roles that imply access to every resource in the organization.
const (
	OrgRoleAdmin  = "admin"
	OrgRoleMember = "member"
)
