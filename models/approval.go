package models

import (
	"time"
)

// LoginRequest is created by the broker and only changed by a reviewer.
type LoginRequest struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	UserID           uint             `gorm:"not null;index" json:"user_id"`
	User             *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Email            string           `gorm:"not null;size:255;index" json:"email"`
	Name             string           `gorm:"size:200" json:"name"`
	RegistrationKind RegistrationKind `gorm:"not null;size:20" json:"registration_kind"`
	RegistrationID   uint             `gorm:"not null" json:"registration_id"`
	Status           ApprovalStatus   `gorm:"not null;size:20;default:PENDING;index" json:"status"`
	ReviewedBy       *uint            `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty"`
	ReviewNote       string           `gorm:"size:500" json:"review_note,omitempty"`
}

// ApprovalHistory rows are never updated or deleted.
type ApprovalHistory struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	ActorID        uint           `gorm:"not null;index" json:"actor_id"`
	TargetUserID   uint           `gorm:"not null;index" json:"target_user_id"`
	TargetEmail    string         `gorm:"size:255" json:"target_email"`
	LoginRequestID *uint          `json:"login_request_id,omitempty"`
	Outcome        ApprovalStatus `gorm:"not null;size:20" json:"outcome"`
	Reason         string         `gorm:"size:500" json:"reason,omitempty"`
}

func (ApprovalHistory) TableName() string {
	return "approval_history"
}

const OTPPurposeLogin = "login"

type OneTimePasscode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Email     string    `gorm:"not null;size:255;index" json:"email"`
	Code      string    `gorm:"not null;size:6" json:"-"`
	Purpose   string    `gorm:"not null;size:20" json:"purpose"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Verified  bool      `gorm:"default:false" json:"verified"`
}

func (o *OneTimePasscode) IsActive(now time.Time) bool {
	return !o.Verified && now.Before(o.ExpiresAt)
}
