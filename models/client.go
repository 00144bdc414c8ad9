package models

import "time"

type Client struct {
	ID               uint   `gorm:"primaryKey"`
	Email            string `gorm:"not null;uniqueIndex"`
	AccessCode       string `gorm:"not null"`
	FirstName        string
	LastName         string
	Phone            string
	Address          string
	InvitationSentAt *time.Time
	ProfileCompleted bool  `gorm:"not null;default:false"`
	AssignedLawyerID *uint `gorm:"index"`
	CreatedAt        time.Time
}

// ClientProfile carries optional contact details a client may fill in while saving estate data.
// Nil fields are left untouched.
type ClientProfile struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

func (p ClientProfile) updates() map[string]any {
	updates := map[string]any{}
	if p.FirstName != nil {
		updates["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		updates["last_name"] = *p.LastName
	}
	if p.Phone != nil {
		updates["phone"] = *p.Phone
	}
	if p.Address != nil {
		updates["address"] = *p.Address
	}
	return updates
}

func (p ClientProfile) apply(c *Client) {
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
}

// ClientSummary is a dashboard row: the client joined with its estate completion time.
type ClientSummary struct {
	Client          `gorm:"embedded"`
	EstateCompleted *time.Time `gorm:"column:estate_completed"`
}
