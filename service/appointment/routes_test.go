package appointment

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
	if err := db.AutoMigrate(&models.User{}, &models.Doctor{}, &models.Appointment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedDoctor(t *testing.T, db *gorm.DB, specialization string) (*models.User, *models.Doctor) {
	user := models.User{
		FullName:     "Dr. X",
		Email:        fmt.Sprintf("doctor-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "x",
		Role:         models.RoleDoctor,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed doctor user: %v", err)
	}
	doctor := models.Doctor{
		UserID:                   user.ID,
		FullName:                 user.FullName,
		Specialization:           specialization,
		AvailableForConsultation: true,
	}
	if err := db.Create(&doctor).Error; err != nil {
		t.Fatalf("failed to seed doctor: %v", err)
	}
	return &user, &doctor
}

func seedPatient(t *testing.T, db *gorm.DB) *models.User {
	user := models.User{
		FullName:     "Asha Patel",
		Email:        fmt.Sprintf("patient-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "x",
		Role:         models.RolePatient,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed patient: %v", err)
	}
	return &user
}

// authedRequest builds a request carrying the context values that
// AuthMiddleware would have set.
func authedRequest(method, target string, body []byte, userID uint, role models.Role) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func tomorrowAt(hour int) time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

func TestBookAppointmentCreatesPendingWithFee(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	_, doctor := seedDoctor(t, db, "Cardiologist")
	patient := seedPatient(t, db)

	body, _ := json.Marshal(map[string]interface{}{
		"doctor_id":        doctor.ID,
		"appointment_time": tomorrowAt(10),
	})
	req := authedRequest("POST", "/appointments/book", body, patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var created models.Appointment
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.PaymentPending, created.PaymentStatus)
	assert.Equal(t, 1000.0, created.PaymentAmount)
	assert.Equal(t, patient.ID, created.PatientID)
}

func TestBookAppointmentRejectsTakenSlot(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	_, doctor := seedDoctor(t, db, "Dermatologist")
	patient := seedPatient(t, db)
	other := seedPatient(t, db)

	slot := tomorrowAt(11)
	db.Create(&models.Appointment{
		DoctorID:        doctor.ID,
		PatientID:       other.ID,
		AppointmentTime: slot,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
	})

	body, _ := json.Marshal(map[string]interface{}{
		"doctor_id":        doctor.ID,
		"appointment_time": slot,
	})
	req := authedRequest("POST", "/appointments/book", body, patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookAppointmentRejectsUnavailableDoctor(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	_, doctor := seedDoctor(t, db, "ENT Specialist")
	db.Model(doctor).Update("available_for_consultation", false)
	patient := seedPatient(t, db)

	body, _ := json.Marshal(map[string]interface{}{
		"doctor_id":        doctor.ID,
		"appointment_time": tomorrowAt(9),
	})
	req := authedRequest("POST", "/appointments/book", body, patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookAppointmentRejectsOffGridSlot(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	_, doctor := seedDoctor(t, db, "Cardiologist")
	patient := seedPatient(t, db)

	now := time.Now()
	offGrid := time.Date(now.Year(), now.Month(), now.Day(), 10, 15, 0, 0, now.Location()).AddDate(0, 0, 1)

	body, _ := json.Marshal(map[string]interface{}{
		"doctor_id":        doctor.ID,
		"appointment_time": offGrid,
	})
	req := authedRequest("POST", "/appointments/book", body, patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoctorAcceptThenCompleteFlow(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	doctorUser, doctor := seedDoctor(t, db, "Neurologist")
	patient := seedPatient(t, db)

	appointment := models.Appointment{
		DoctorID:        doctor.ID,
		PatientID:       patient.ID,
		AppointmentTime: tomorrowAt(10),
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		PaymentAmount:   1200,
	}
	db.Create(&appointment)

	accept := func() *httptest.ResponseRecorder {
		req := authedRequest("PATCH", fmt.Sprintf("/appointments/%d/accept", appointment.ID), nil, doctorUser.ID, models.RoleDoctor)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(appointment.ID)})
		rec := httptest.NewRecorder()
		handler.AcceptAppointment(rec, req)
		return rec
	}

	rec := accept()
	assert.Equal(t, http.StatusOK, rec.Code)

	var reloaded models.Appointment
	db.First(&reloaded, appointment.ID)
	assert.Equal(t, models.StatusConfirmed, reloaded.Status)

	// Accepting twice violates the state machine.
	rec = accept()
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := authedRequest("PATCH", fmt.Sprintf("/appointments/%d/complete", appointment.ID), nil, doctorUser.ID, models.RoleDoctor)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(appointment.ID)})
	rec = httptest.NewRecorder()
	handler.CompleteAppointment(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	db.First(&reloaded, appointment.ID)
	assert.Equal(t, models.StatusCompleted, reloaded.Status)
}

func TestDeclineMovesAppointmentToPastList(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	doctorUser, doctor := seedDoctor(t, db, "Pediatrician")
	patient := seedPatient(t, db)

	appointment := models.Appointment{
		DoctorID:        doctor.ID,
		PatientID:       patient.ID,
		AppointmentTime: tomorrowAt(14),
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		PaymentAmount:   600,
	}
	db.Create(&appointment)

	req := authedRequest("PATCH", fmt.Sprintf("/appointments/%d/decline", appointment.ID), nil, doctorUser.ID, models.RoleDoctor)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(appointment.ID)})
	rec := httptest.NewRecorder()
	handler.DeclineAppointment(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	listReq := authedRequest("GET", "/appointments", nil, patient.ID, models.RolePatient)
	listRec := httptest.NewRecorder()
	handler.GetMyAppointments(listRec, listReq)
	assert.Equal(t, http.StatusOK, listRec.Code)

	var listing struct {
		Upcoming []models.Appointment `json:"upcoming"`
		Past     []models.Appointment `json:"past"`
		Total    int                  `json:"total"`
	}
	assert.NoError(t, json.NewDecoder(listRec.Body).Decode(&listing))
	assert.Equal(t, 1, listing.Total)
	assert.Len(t, listing.Upcoming, 0)
	assert.Len(t, listing.Past, 1)
	assert.Equal(t, models.StatusCancelled, listing.Past[0].Status)
}

func TestTransitionForbiddenForOtherDoctor(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db, nil)
	_, doctor := seedDoctor(t, db, "Cardiologist")
	intruderUser, _ := seedDoctor(t, db, "Dermatologist")
	patient := seedPatient(t, db)

	appointment := models.Appointment{
		DoctorID:        doctor.ID,
		PatientID:       patient.ID,
		AppointmentTime: tomorrowAt(12),
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
	}
	db.Create(&appointment)

	req := authedRequest("PATCH", fmt.Sprintf("/appointments/%d/accept", appointment.ID), nil, intruderUser.ID, models.RoleDoctor)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(appointment.ID)})
	rec := httptest.NewRecorder()
	handler.AcceptAppointment(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidateSlot(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	valid := time.Date(2025, 6, 16, 10, 30, 0, 0, time.UTC)
	assert.NoError(t, ValidateSlot(valid, now))

	past := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, ValidateSlot(past, now), ErrSlotInPast)

	farAhead := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, ValidateSlot(farAhead, now), ErrSlotTooFarAhead)

	offGrid := time.Date(2025, 6, 16, 10, 15, 0, 0, time.UTC)
	assert.ErrorIs(t, ValidateSlot(offGrid, now), ErrSlotOffGrid)

	tooEarly := time.Date(2025, 6, 16, 8, 30, 0, 0, time.UTC)
	assert.ErrorIs(t, ValidateSlot(tooEarly, now), ErrSlotOffGrid)

	tooLate := time.Date(2025, 6, 16, 17, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, ValidateSlot(tooLate, now), ErrSlotOffGrid)
}

func TestFeeForSpecializationIsDeterministic(t *testing.T) {
	assert.Equal(t, 1000.0, FeeForSpecialization("Cardiologist"))
	assert.Equal(t, FeeForSpecialization("Cardiologist"), FeeForSpecialization("Cardiologist"))
	assert.Equal(t, 500.0, FeeForSpecialization("Unknown Specialty"))
}
