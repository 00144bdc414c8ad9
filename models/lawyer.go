package models

import "time"

type Lawyer struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	BarNumber    *string
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	CreatedAt    time.Time
}
