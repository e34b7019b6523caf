package medication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	"github.com/swasthya-health/swasthya-server/cmd/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Medication{}, &models.MedicationReminder{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	user := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func authed(req *http.Request, userID uint) *http.Request {
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, models.RolePatient)
	return req.WithContext(ctx)
}

func TestMarkReminderTakenDecrementsQuantityOnce(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	user := seedUser(t, db)

	medication := models.Medication{UserID: user.ID, Name: "Metformin", QuantityRemaining: 5}
	db.Create(&medication)
	reminder := models.MedicationReminder{MedicationID: medication.ID, UserID: user.ID, RemindAt: time.Now()}
	db.Create(&reminder)

	mark := func() *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest("PATCH", fmt.Sprintf("/medications/reminders/%d/taken", reminder.ID), nil), user.ID)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(reminder.ID)})
		rec := httptest.NewRecorder()
		handler.MarkReminderTaken(rec, req)
		return rec
	}

	rec := mark()
	assert.Equal(t, http.StatusOK, rec.Code)

	var reloadedReminder models.MedicationReminder
	db.First(&reloadedReminder, reminder.ID)
	assert.True(t, reloadedReminder.Taken)

	var reloadedMedication models.Medication
	db.First(&reloadedMedication, medication.ID)
	assert.Equal(t, 4, reloadedMedication.QuantityRemaining)

	// Second mark is rejected and the quantity is untouched.
	rec = mark()
	assert.Equal(t, http.StatusConflict, rec.Code)

	db.First(&reloadedMedication, medication.ID)
	assert.Equal(t, 4, reloadedMedication.QuantityRemaining)
}

func TestMarkReminderTakenClampsQuantityAtZero(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	user := seedUser(t, db)

	medication := models.Medication{UserID: user.ID, Name: "Vitamin D", QuantityRemaining: 0}
	db.Create(&medication)
	reminder := models.MedicationReminder{MedicationID: medication.ID, UserID: user.ID, RemindAt: time.Now()}
	db.Create(&reminder)

	req := authed(httptest.NewRequest("PATCH", fmt.Sprintf("/medications/reminders/%d/taken", reminder.ID), nil), user.ID)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(reminder.ID)})
	rec := httptest.NewRecorder()
	handler.MarkReminderTaken(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var reloadedMedication models.Medication
	db.First(&reloadedMedication, medication.ID)
	assert.Equal(t, 0, reloadedMedication.QuantityRemaining)
}

func TestMarkReminderTakenForbiddenForOtherUser(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	owner := seedUser(t, db)
	intruder := models.User{FullName: "Rohan", Email: "rohan@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&intruder)

	medication := models.Medication{UserID: owner.ID, Name: "Metformin", QuantityRemaining: 2}
	db.Create(&medication)
	reminder := models.MedicationReminder{MedicationID: medication.ID, UserID: owner.ID, RemindAt: time.Now()}
	db.Create(&reminder)

	req := authed(httptest.NewRequest("PATCH", fmt.Sprintf("/medications/reminders/%d/taken", reminder.ID), nil), intruder.ID)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(reminder.ID)})
	rec := httptest.NewRecorder()
	handler.MarkReminderTaken(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateMedicationSeedsReminders(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	user := seedUser(t, db)

	body, _ := json.Marshal(map[string]interface{}{
		"name":               "Amoxicillin",
		"dosage":             "500mg",
		"schedule_times":     []string{"08:00", "20:00"},
		"quantity_remaining": 14,
	})
	req := authed(httptest.NewRequest("POST", "/medications", bytes.NewReader(body)), user.ID)
	rec := httptest.NewRecorder()
	handler.CreateMedication(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var created models.Medication
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 14, created.QuantityRemaining)

	var reminderCount int64
	db.Model(&models.MedicationReminder{}).Where("medication_id = ?", created.ID).Count(&reminderCount)
	assert.Equal(t, int64(2), reminderCount)
}

func TestCreateMedicationRejectsBadScheduleTime(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	user := seedUser(t, db)

	body, _ := json.Marshal(map[string]interface{}{
		"name":           "Amoxicillin",
		"schedule_times": []string{"8pm"},
	})
	req := authed(httptest.NewRequest("POST", "/medications", bytes.NewReader(body)), user.ID)
	rec := httptest.NewRecorder()
	handler.CreateMedication(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
