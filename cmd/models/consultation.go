package models

import (
	"gorm.io/gorm"
)

// ConsultationMessage is append-only: no edit, no delete, no read
// receipts. Display order is created_at ascending.
type ConsultationMessage struct {
	gorm.Model
	AppointmentID uint   `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	SenderID      uint   `gorm:"column:sender_id;not null" json:"sender_id"`
	SenderRole    Role   `gorm:"column:sender_role;size:20;not null" json:"sender_role"`
	Content       string `gorm:"column:content;type:text;not null" json:"content"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
	Sender      *User        `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (ConsultationMessage) TableName() string {
	return "consultation_messages"
}
