package appointment

import (
	"errors"
	"time"
)

const (
	bookingWindowDays = 30
	firstSlotHour     = 9
	lastSlotHour      = 17 // exclusive; last bookable slot starts 16:30
)

var (
	ErrSlotInPast      = errors.New("appointment time is in the past")
	ErrSlotTooFarAhead = errors.New("appointment must be within 30 days")
	ErrSlotOffGrid     = errors.New("appointment must start on a half-hour slot between 09:00 and 17:00")
)

// ValidateSlot checks a requested appointment time against the booking
// rules: not in the past, at most 30 days out, and aligned to the
// half-hour grid inside working hours.
func ValidateSlot(slot, now time.Time) error {
	if !slot.After(now) {
		return ErrSlotInPast
	}
	if slot.After(now.AddDate(0, 0, bookingWindowDays)) {
		return ErrSlotTooFarAhead
	}
	if slot.Minute() != 0 && slot.Minute() != 30 {
		return ErrSlotOffGrid
	}
	if slot.Second() != 0 || slot.Nanosecond() != 0 {
		return ErrSlotOffGrid
	}
	if slot.Hour() < firstSlotHour || slot.Hour() >= lastSlotHour {
		return ErrSlotOffGrid
	}
	return nil
}
