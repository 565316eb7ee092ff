package models

import (
	"time"
)

type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	ShortName string    `gorm:"size:10" json:"short_name,omitempty"`
	Players   []Player  `gorm:"foreignKey:TeamID" json:"players,omitempty"`
}
