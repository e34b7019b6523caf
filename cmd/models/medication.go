package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Medication struct {
	gorm.Model
	UserID            uint           `gorm:"column:user_id;not null;index" json:"user_id"`
	Name              string         `gorm:"column:name;size:255;not null" json:"name"`
	Dosage            string         `gorm:"column:dosage;size:100" json:"dosage"`
	ScheduleTimes     pq.StringArray `gorm:"column:schedule_times;type:text[]" json:"schedule_times"`
	QuantityRemaining int            `gorm:"column:quantity_remaining;default:0" json:"quantity_remaining"`
	Instructions      string         `gorm:"column:instructions;type:text" json:"instructions,omitempty"`

	User      *User                `gorm:"foreignKey:UserID" json:"-"`
	Reminders []MedicationReminder `gorm:"foreignKey:MedicationID;constraint:OnDelete:CASCADE" json:"reminders,omitempty"`
}

// MedicationReminder is one scheduled dose. Marking it taken flips
// Taken exactly once and decrements the medication's
// quantity_remaining by one, clamped at zero.
type MedicationReminder struct {
	gorm.Model
	MedicationID uint      `gorm:"column:medication_id;not null;index" json:"medication_id"`
	UserID       uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	RemindAt     time.Time `gorm:"column:remind_at;not null" json:"remind_at"`
	Taken        bool      `gorm:"column:taken;default:false" json:"taken"`
	Notified     bool      `gorm:"column:notified;default:false" json:"notified"`

	Medication *Medication `gorm:"foreignKey:MedicationID" json:"medication,omitempty"`
}
