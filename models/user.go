package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleUser       Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// User is the authentication principal.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Email          string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name           string         `gorm:"size:200" json:"name"`
	PasswordHash   string         `gorm:"size:255" json:"-"`
	Role           Role           `gorm:"not null;size:20;default:USER" json:"role"`
	ApprovalStatus ApprovalStatus `gorm:"not null;size:20;default:PENDING;index" json:"approval_status"`
	PlayerID       *uint          `gorm:"index" json:"player_id,omitempty"`
	Player         *Player        `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
	ProjectName    string         `gorm:"size:100" json:"project_name,omitempty"`
	PictureURL     string         `gorm:"size:500" json:"picture_url,omitempty"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
}

// NormalizeEmail is the canonical form used for every email lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsApproved() bool {
	return u.IsSuperAdmin() || u.ApprovalStatus == StatusApproved
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
