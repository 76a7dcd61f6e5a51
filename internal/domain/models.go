// Package domain defines the persistence models for domains and handle
// claims. These types are mapped with GORM and form the core data layer of
// the handle registry.
package domain

import "time"

// Domain is a hostname under which usernames are issued. Rows are created
// lazily on the first claim under a name and are never deleted.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Name: normalized hostname (unique).
//   - CreatedAt: timestamp managed by GORM.
type Domain struct {
	ID        uint      `json:"-"          gorm:"primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(253);not null;uniqueIndex:ux_domains_name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Domain.
func (Domain) TableName() string { return "domains" }

// Claim binds a username under a Domain to an account DID.
//
// Within one domain a username is unique (enforced by ux_users_domain_username).
// The same DID may hold several usernames in a domain; DID is indexed for
// lookups but deliberately not unique.
type Claim struct {
	ID        uint      `json:"-"          gorm:"primaryKey"`
	DomainID  uint      `json:"-"          gorm:"not null;uniqueIndex:ux_users_domain_username,priority:1"`
	Username  string    `json:"username"   gorm:"type:varchar(253);not null;uniqueIndex:ux_users_domain_username,priority:2"`
	DID       string    `json:"did"        gorm:"column:did;type:varchar(2048);not null;index:idx_users_did"`
	CreatedAt time.Time `json:"created_at"`

	// Domain is the owning domain.
	Domain Domain `json:"domain" gorm:"foreignKey:DomainID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Claim. The table keeps the
// historical "users" name.
func (Claim) TableName() string { return "users" }

// Profile is the subset of an external account profile the registry cares
// about. It is never persisted.
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}
