package models

import (
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Appointment struct {
	gorm.Model
	DoctorID        uint              `gorm:"column:doctor_id;not null" json:"doctor_id"`
	PatientID       uint              `gorm:"column:patient_id;not null" json:"patient_id"`
	AppointmentTime time.Time         `gorm:"column:appointment_time;not null" json:"appointment_time"`
	Status          AppointmentStatus `gorm:"column:status;size:20;not null;default:pending" json:"status"`
	Notes           string            `gorm:"column:notes;type:text" json:"notes"`
	PaymentStatus   PaymentStatus     `gorm:"column:payment_status;size:20;not null;default:pending" json:"payment_status"`
	PaymentAmount   float64           `gorm:"column:payment_amount;not null" json:"payment_amount"`

	Doctor  *Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Patient *User   `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}

// Terminal reports whether no further status transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition encodes the legal appointment state machine:
// pending -> confirmed|cancelled, confirmed -> cancelled|completed.
func CanTransition(from, to AppointmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}

// IsPast places an appointment in the "past" list: strictly before the
// start of the given day, or already in a terminal state. Everything
// else is "upcoming"; the two sets partition a patient's appointments.
func (a *Appointment) IsPast(now time.Time) bool {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return a.AppointmentTime.Before(startOfDay) || a.Status.Terminal()
}
