package models

import (
	"gorm.io/gorm"
)

// EmergencyContact: at most one primary per user whenever the list is
// non-empty. The handlers maintain the invariant transactionally:
// first insert becomes primary, promoting demotes the old primary,
// deleting the primary promotes the oldest remaining contact.
type EmergencyContact struct {
	gorm.Model
	UserID    uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Name      string `gorm:"column:name;size:255;not null" json:"name"`
	Relation  string `gorm:"column:relation;size:100" json:"relation"`
	Phone     string `gorm:"column:phone;size:20;not null" json:"phone"`
	IsPrimary bool   `gorm:"column:is_primary;default:false" json:"is_primary"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (EmergencyContact) TableName() string {
	return "emergency_contacts"
}
