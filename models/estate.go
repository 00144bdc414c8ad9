package models

import "time"

// EstateRecord is the single estate-planning document owned by a client.
// Children, Assets and Beneficiaries hold free text or JSON-encoded values.
type EstateRecord struct {
	ID                    uint `gorm:"primaryKey"`
	ClientID              uint `gorm:"not null;uniqueIndex"`
	MaritalStatus         string
	SpouseName            string
	Children              string `gorm:"type:text"`
	Assets                string `gorm:"type:text"`
	Beneficiaries         string `gorm:"type:text"`
	HealthcarePreferences string `gorm:"type:text"`
	ExecutorPreferences   string `gorm:"type:text"`
	SpecialInstructions   string `gorm:"type:text"`
	CompletedAt           *time.Time
	UpdatedAt             time.Time
}

func (EstateRecord) TableName() string {
	return "estate_data"
}

// estateColumns are overwritten when a record is saved again.
var estateColumns = []string{
	"marital_status",
	"spouse_name",
	"children",
	"assets",
	"beneficiaries",
	"healthcare_preferences",
	"executor_preferences",
	"special_instructions",
	"completed_at",
	"updated_at",
}
