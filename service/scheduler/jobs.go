package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	notification "github.com/swasthya-health/swasthya-server/service/notifications"
	"gorm.io/gorm"
)

// Jobs holds the background work that runs alongside the API server:
// due medication reminder pushes and the appointment auto-complete
// sweep.
type Jobs struct {
	db       *gorm.DB
	notifier *notification.Notifier
}

func New(db *gorm.DB, notifier *notification.Notifier) *Jobs {
	return &Jobs{
		db:       db,
		notifier: notifier,
	}
}

func (j *Jobs) Start() *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.Local)

	scheduler.Every(1).Minutes().Do(func() {
		if err := j.SendDueMedicationReminders(); err != nil {
			log.Printf("Error sending medication reminders: %v", err)
		}
	})

	scheduler.Every(1).Hours().Do(func() {
		if err := j.AutoCompleteAppointments(); err != nil {
			log.Printf("Error auto-completing appointments: %v", err)
		}
	})

	scheduler.StartAsync()
	log.Println("Background jobs started")

	return scheduler
}

// SendDueMedicationReminders pushes a notification for every reminder
// that has come due and has not been notified yet. Notified is flipped
// before the push so a failed send does not re-fire forever, and each
// fired reminder enqueues the same dose for the next day so the cycle
// keeps rolling. Doses already marked taken still roll forward, they
// just skip the push.
func (j *Jobs) SendDueMedicationReminders() error {
	now := time.Now()

	var reminders []models.MedicationReminder
	if err := j.db.Preload("Medication").
		Where("remind_at <= ? AND notified = ?", now, false).
		Find(&reminders).Error; err != nil {
		return fmt.Errorf("failed to query due reminders: %w", err)
	}

	for _, reminder := range reminders {
		tx := j.db.Begin()
		if err := tx.Model(&reminder).Update("notified", true).Error; err != nil {
			tx.Rollback()
			log.Printf("Failed to mark reminder %d notified: %v", reminder.ID, err)
			continue
		}

		// Advance past now in case the reminder was overdue by
		// more than a day.
		nextAt := reminder.RemindAt.AddDate(0, 0, 1)
		for !nextAt.After(now) {
			nextAt = nextAt.AddDate(0, 0, 1)
		}
		next := models.MedicationReminder{
			MedicationID: reminder.MedicationID,
			UserID:       reminder.UserID,
			RemindAt:     nextAt,
		}
		if err := tx.Create(&next).Error; err != nil {
			tx.Rollback()
			log.Printf("Failed to enqueue next reminder for medication %d: %v", reminder.MedicationID, err)
			continue
		}

		if err := tx.Commit().Error; err != nil {
			log.Printf("Failed to save reminder %d: %v", reminder.ID, err)
			continue
		}

		if reminder.Taken || j.notifier == nil || reminder.Medication == nil {
			continue
		}

		title := "Medication reminder"
		body := fmt.Sprintf("Time to take %s", reminder.Medication.Name)
		if reminder.Medication.Dosage != "" {
			body = fmt.Sprintf("%s (%s)", body, reminder.Medication.Dosage)
		}

		if err := j.notifier.NotifyUser(reminder.UserID, title, body, map[string]interface{}{
			"type":        "medication_reminder",
			"reminder_id": reminder.ID,
		}); err != nil {
			log.Printf("Failed to notify user %d for reminder %d: %v", reminder.UserID, reminder.ID, err)
		}
	}

	return nil
}

// AutoCompleteAppointments marks paid, confirmed appointments as
// completed once more than 24 hours have passed since their slot.
// Doctors can still complete explicitly; this sweep catches the ones
// nobody closed out.
func (j *Jobs) AutoCompleteAppointments() error {
	cutoff := time.Now().Add(-24 * time.Hour)

	result := j.db.Model(&models.Appointment{}).
		Where("status = ? AND payment_status = ? AND appointment_time < ?",
			models.StatusConfirmed, models.PaymentCompleted, cutoff).
		Update("status", models.StatusCompleted)
	if result.Error != nil {
		return fmt.Errorf("failed to auto-complete appointments: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		log.Printf("Auto-completed %d appointments", result.RowsAffected)
	}

	return nil
}
