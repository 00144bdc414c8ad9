package models

import "time"

// InvitationLog is the append-only audit trail of invitations sent by lawyers.
type InvitationLog struct {
	ID             uint   `gorm:"primaryKey"`
	ClientEmail    string `gorm:"not null;index"`
	InvitationCode string `gorm:"not null;uniqueIndex"`
	SentByLawyerID *uint  `gorm:"index"`
	SentAt         time.Time
	OpenedAt       *time.Time
	AppDownloaded  bool `gorm:"not null;default:false"`
}

func (InvitationLog) TableName() string {
	return "email_invitations"
}

type InvitationStats struct {
	TotalInvitations int64 `gorm:"column:total_invitations"`
	Downloads        int64 `gorm:"column:downloads"`
}
