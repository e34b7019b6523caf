package consultation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

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
	if err := db.AutoMigrate(&models.User{}, &models.Doctor{}, &models.Appointment{}, &models.ConsultationMessage{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

type fixture struct {
	patient     *models.User
	doctorUser  *models.User
	appointment *models.Appointment
}

func seedAppointment(t *testing.T, db *gorm.DB, status models.AppointmentStatus, payment models.PaymentStatus) fixture {
	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	if err := db.Create(&patient).Error; err != nil {
		t.Fatalf("failed to seed patient: %v", err)
	}
	doctorUser := models.User{FullName: "Dr. X", Email: "drx@example.com", PasswordHash: "x", Role: models.RoleDoctor}
	if err := db.Create(&doctorUser).Error; err != nil {
		t.Fatalf("failed to seed doctor user: %v", err)
	}
	doctor := models.Doctor{UserID: doctorUser.ID, FullName: "Dr. X", Specialization: "Cardiologist", AvailableForConsultation: true}
	if err := db.Create(&doctor).Error; err != nil {
		t.Fatalf("failed to seed doctor: %v", err)
	}
	appointment := models.Appointment{
		DoctorID:      doctor.ID,
		PatientID:     patient.ID,
		Status:        status,
		PaymentStatus: payment,
		PaymentAmount: 1000,
	}
	if err := db.Create(&appointment).Error; err != nil {
		t.Fatalf("failed to seed appointment: %v", err)
	}
	return fixture{patient: &patient, doctorUser: &doctorUser, appointment: &appointment}
}

func authed(req *http.Request, userID uint, role models.Role) *http.Request {
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func withID(req *http.Request, id uint) *http.Request {
	return mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(id)})
}

func TestGetEligibilityReflectsPaymentState(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	f := seedAppointment(t, db, models.StatusConfirmed, models.PaymentPending)

	check := func() map[string]interface{} {
		req := authed(httptest.NewRequest("GET", fmt.Sprintf("/appointments/%d/eligibility", f.appointment.ID), nil), f.patient.ID, models.RolePatient)
		rec := httptest.NewRecorder()
		handler.GetEligibility(rec, withID(req, f.appointment.ID))
		assert.Equal(t, http.StatusOK, rec.Code)

		var response map[string]interface{}
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		return response
	}

	response := check()
	assert.Equal(t, false, response["eligible"])

	db.Model(f.appointment).Update("payment_status", models.PaymentCompleted)

	response = check()
	assert.Equal(t, true, response["eligible"])
	assert.NotEmpty(t, response["peer_id"])
}

func TestGetEligibilityForbiddenForStranger(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	f := seedAppointment(t, db, models.StatusConfirmed, models.PaymentCompleted)

	stranger := models.User{FullName: "Rohan", Email: "rohan@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&stranger)

	req := authed(httptest.NewRequest("GET", fmt.Sprintf("/appointments/%d/eligibility", f.appointment.ID), nil), stranger.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.GetEligibility(rec, withID(req, f.appointment.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendMessageBlockedUntilEligible(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	f := seedAppointment(t, db, models.StatusConfirmed, models.PaymentPending)

	body, _ := json.Marshal(map[string]string{"content": "hello doctor"})
	req := authed(httptest.NewRequest("POST", fmt.Sprintf("/appointments/%d/messages", f.appointment.ID), bytes.NewReader(body)), f.patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.SendMessage(rec, withID(req, f.appointment.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMessagesRoundTripInOrder(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	f := seedAppointment(t, db, models.StatusConfirmed, models.PaymentCompleted)

	send := func(userID uint, role models.Role, content string) {
		body, _ := json.Marshal(map[string]string{"content": content})
		req := authed(httptest.NewRequest("POST", fmt.Sprintf("/appointments/%d/messages", f.appointment.ID), bytes.NewReader(body)), userID, role)
		rec := httptest.NewRecorder()
		handler.SendMessage(rec, withID(req, f.appointment.ID))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	send(f.patient.ID, models.RolePatient, "hello doctor")
	send(f.doctorUser.ID, models.RoleDoctor, "hello, how can I help?")

	req := authed(httptest.NewRequest("GET", fmt.Sprintf("/appointments/%d/messages", f.appointment.ID), nil), f.patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.GetMessages(rec, withID(req, f.appointment.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	var messages []models.ConsultationMessage
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&messages))
	assert.Len(t, messages, 2)
	assert.Equal(t, "hello doctor", messages[0].Content)
	assert.Equal(t, models.RolePatient, messages[0].SenderRole)
	assert.Equal(t, "hello, how can I help?", messages[1].Content)
	assert.Equal(t, models.RoleDoctor, messages[1].SenderRole)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	f := seedAppointment(t, db, models.StatusConfirmed, models.PaymentCompleted)

	body, _ := json.Marshal(map[string]string{"content": ""})
	req := authed(httptest.NewRequest("POST", fmt.Sprintf("/appointments/%d/messages", f.appointment.ID), bytes.NewReader(body)), f.patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.SendMessage(rec, withID(req, f.appointment.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
