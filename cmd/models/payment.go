package models

import (
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	MethodUPI  PaymentMethod = "upi"
	MethodCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodUPI || m == MethodCard
}

// Payment records one payment attempt against an appointment. The
// appointment's payment_status is updated in the same transaction so
// the two can never diverge.
type Payment struct {
	gorm.Model
	AppointmentID uint          `gorm:"column:appointment_id;not null" json:"appointment_id"`
	UserID        uint          `gorm:"column:user_id;not null" json:"user_id"`
	Amount        float64       `gorm:"column:amount;not null" json:"amount"`
	Method        PaymentMethod `gorm:"column:payment_method;size:20;not null" json:"payment_method"`
	Status        PaymentStatus `gorm:"column:status;size:20;not null" json:"status"`
	Reference     string        `gorm:"column:reference;size:64" json:"reference"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
}
