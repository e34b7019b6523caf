package doctor

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
	if err := db.AutoMigrate(&models.User{}, &models.Doctor{}, &models.DoctorRating{}, &models.Appointment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedDoctor(t *testing.T, db *gorm.DB, name, specialization string, available bool) *models.Doctor {
	user := models.User{
		FullName:     name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         models.RoleDoctor,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	doctor := models.Doctor{
		UserID:                   user.ID,
		FullName:                 name,
		Specialization:           specialization,
		AvailableForConsultation: available,
	}
	if err := db.Create(&doctor).Error; err != nil {
		t.Fatalf("failed to seed doctor: %v", err)
	}
	// The column has default:true, so GORM drops a zero-value false on
	// Create; write it explicitly so the fixture matches the argument.
	if err := db.Model(&doctor).Update("available_for_consultation", available).Error; err != nil {
		t.Fatalf("failed to set doctor availability: %v", err)
	}
	return &doctor
}

func authed(req *http.Request, userID uint, role models.Role) *http.Request {
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func TestGetDoctorsFiltersUnavailableByDefault(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	seedDoctor(t, db, "dr-available", "Cardiologist", true)
	seedDoctor(t, db, "dr-away", "Neurologist", false)

	req := httptest.NewRequest("GET", "/doctors", nil)
	rec := httptest.NewRecorder()
	handler.GetDoctors(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Doctors []models.Doctor `json:"doctors"`
		Total   int64           `json:"total"`
	}
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, int64(1), response.Total)
	assert.Equal(t, "dr-available", response.Doctors[0].FullName)

	req = httptest.NewRequest("GET", "/doctors?all=true", nil)
	rec = httptest.NewRecorder()
	handler.GetDoctors(rec, req)
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, int64(2), response.Total)
}

func TestSearchDoctorsMatchesSpecialization(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	seedDoctor(t, db, "dr-heart", "Cardiologist", true)
	seedDoctor(t, db, "dr-skin", "Dermatologist", true)

	req := httptest.NewRequest("GET", "/doctors/search?q=Cardio", nil)
	rec := httptest.NewRecorder()
	handler.SearchDoctors(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Doctors []models.Doctor `json:"doctors"`
		Total   int64           `json:"total"`
	}
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, int64(1), response.Total)
	assert.Equal(t, "dr-heart", response.Doctors[0].FullName)
}

func TestToggleAvailabilityOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	doctor := seedDoctor(t, db, "dr-toggle", "Cardiologist", true)
	other := seedDoctor(t, db, "dr-other", "Neurologist", true)

	toggle := func(userID uint) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]bool{"available_for_consultation": false})
		req := authed(httptest.NewRequest("PATCH", fmt.Sprintf("/doctors/%d/availability", doctor.ID), bytes.NewReader(body)), userID, models.RoleDoctor)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(doctor.ID)})
		rec := httptest.NewRecorder()
		handler.ToggleAvailability(rec, req)
		return rec
	}

	rec := toggle(other.UserID)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = toggle(doctor.UserID)
	assert.Equal(t, http.StatusOK, rec.Code)

	var reloaded models.Doctor
	db.First(&reloaded, doctor.ID)
	assert.False(t, reloaded.AvailableForConsultation)
}

func TestRateDoctorRequiresCompletedAppointment(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	doctor := seedDoctor(t, db, "dr-rated", "Cardiologist", true)

	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&patient)

	rate := func(value float64) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]interface{}{"rating": value, "comment": "helpful"})
		req := authed(httptest.NewRequest("POST", fmt.Sprintf("/doctors/%d/ratings", doctor.ID), bytes.NewReader(body)), patient.ID, models.RolePatient)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(doctor.ID)})
		rec := httptest.NewRecorder()
		handler.RateDoctor(rec, req)
		return rec
	}

	rec := rate(4)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	db.Create(&models.Appointment{
		DoctorID:      doctor.ID,
		PatientID:     patient.ID,
		Status:        models.StatusCompleted,
		PaymentStatus: models.PaymentCompleted,
	})

	rec = rate(4)
	assert.Equal(t, http.StatusOK, rec.Code)

	var reloaded models.Doctor
	db.First(&reloaded, doctor.ID)
	assert.Equal(t, 4.0, reloaded.Rating)
	assert.Equal(t, 1, reloaded.TotalRatings)

	// Re-rating replaces the previous score instead of stacking a
	// second row.
	rec = rate(2)
	assert.Equal(t, http.StatusOK, rec.Code)

	db.First(&reloaded, doctor.ID)
	assert.Equal(t, 2.0, reloaded.Rating)
	assert.Equal(t, 1, reloaded.TotalRatings)
}

func TestRateDoctorRejectsOutOfRange(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)
	doctor := seedDoctor(t, db, "dr-range", "Cardiologist", true)

	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&patient)

	body, _ := json.Marshal(map[string]interface{}{"rating": 6.0})
	req := authed(httptest.NewRequest("POST", fmt.Sprintf("/doctors/%d/ratings", doctor.ID), bytes.NewReader(body)), patient.ID, models.RolePatient)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(doctor.ID)})
	rec := httptest.NewRecorder()
	handler.RateDoctor(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
