package models

import (
	"time"
)

// RegistrationKind names the bulk-imported table an email was found in.
type RegistrationKind string

const (
	KindCommittee RegistrationKind = "COMMITTEE"
	KindPlayer    RegistrationKind = "PLAYER"
	KindFood      RegistrationKind = "FOOD"
)

type Player struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	TraineeID  string    `gorm:"uniqueIndex;not null;size:50" json:"trainee_id"`
	Email      string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name       string    `gorm:"not null;size:200" json:"name"`
	Department string    `gorm:"size:100" json:"department,omitempty"`
	PlayerRole string    `gorm:"size:50" json:"player_role,omitempty"`
	TeamID     *uint     `gorm:"index" json:"team_id,omitempty"`
	Team       *Team     `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	IsApproved bool      `gorm:"default:false;index" json:"is_approved"`
}

type FoodRegistrant struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	TraineeID      string     `gorm:"uniqueIndex;not null;size:50" json:"trainee_id"`
	Email          string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name           string     `gorm:"not null;size:200" json:"name"`
	FoodPreference string     `gorm:"size:20" json:"food_preference,omitempty"`
	Collected      bool       `gorm:"default:false" json:"collected"`
	CollectedAt    *time.Time `json:"collected_at,omitempty"`
	IsApproved     bool       `gorm:"default:false;index" json:"is_approved"`
}

type CommitteeMember struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Email       string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name        string     `gorm:"not null;size:200" json:"name"`
	Designation string     `gorm:"size:100" json:"designation,omitempty"`
	Phone       string     `gorm:"size:30" json:"phone,omitempty"`
	CheckedIn   bool       `gorm:"default:false" json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	IsApproved  bool       `gorm:"default:false;index" json:"is_approved"`
}
