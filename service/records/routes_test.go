package records

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
	if err := db.AutoMigrate(&models.User{}, &models.Doctor{}, &models.Appointment{},
		&models.MedicalRecord{}, &models.RecordAttachment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func authed(req *http.Request, userID uint, role models.Role) *http.Request {
	ctx := context.WithValue(req.Context(), utils.UserIDKey, userID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	return req.WithContext(ctx)
}

func TestCreateAndListRecords(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)

	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&patient)

	body, _ := json.Marshal(map[string]interface{}{
		"record_type": "lab_result",
		"title":       "Blood panel",
		"department":  "Pathology",
		"summary":     "All values within range",
	})
	req := authed(httptest.NewRequest("POST", "/records", bytes.NewReader(body)), patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.CreateRecord(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	listReq := authed(httptest.NewRequest("GET", "/records", nil), patient.ID, models.RolePatient)
	listRec := httptest.NewRecorder()
	handler.GetRecords(listRec, listReq)
	assert.Equal(t, http.StatusOK, listRec.Code)

	var records []models.MedicalRecord
	assert.NoError(t, json.NewDecoder(listRec.Body).Decode(&records))
	assert.Len(t, records, 1)
	assert.Equal(t, "Blood panel", records[0].Title)
	assert.Equal(t, models.RecordLabResult, records[0].RecordType)
}

func TestCreateRecordRejectsUnknownType(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)

	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&patient)

	body, _ := json.Marshal(map[string]interface{}{
		"record_type": "x_ray_selfie",
		"title":       "Something",
	})
	req := authed(httptest.NewRequest("POST", "/records", bytes.NewReader(body)), patient.ID, models.RolePatient)
	rec := httptest.NewRecorder()
	handler.CreateRecord(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoctorReadsRecordOnlyWithTreatmentRelationship(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)

	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&patient)
	doctorUser := models.User{FullName: "Dr. X", Email: "drx@example.com", PasswordHash: "x", Role: models.RoleDoctor}
	db.Create(&doctorUser)
	doctor := models.Doctor{UserID: doctorUser.ID, FullName: "Dr. X", Specialization: "Cardiologist"}
	db.Create(&doctor)

	record := models.MedicalRecord{
		PatientID:  patient.ID,
		RecordType: models.RecordPrescription,
		RecordDate: time.Now(),
		Title:      "Prescription",
	}
	db.Create(&record)

	read := func() *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest("GET", fmt.Sprintf("/records/%d", record.ID), nil), doctorUser.ID, models.RoleDoctor)
		req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(record.ID)})
		rec := httptest.NewRecorder()
		handler.GetRecord(rec, req)
		return rec
	}

	// No appointment between them yet.
	rec := read()
	assert.Equal(t, http.StatusForbidden, rec.Code)

	db.Create(&models.Appointment{
		DoctorID:      doctor.ID,
		PatientID:     patient.ID,
		Status:        models.StatusConfirmed,
		PaymentStatus: models.PaymentCompleted,
	})

	rec = read()
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDoctorCannotEditPatientRecord(t *testing.T) {
	db := setupTestDB(t)
	handler := NewHandler(db)

	patient := models.User{FullName: "Asha Patel", Email: "asha@example.com", PasswordHash: "x", Role: models.RolePatient}
	db.Create(&patient)
	doctorUser := models.User{FullName: "Dr. X", Email: "drx@example.com", PasswordHash: "x", Role: models.RoleDoctor}
	db.Create(&doctorUser)
	doctor := models.Doctor{UserID: doctorUser.ID, FullName: "Dr. X", Specialization: "Cardiologist"}
	db.Create(&doctor)
	db.Create(&models.Appointment{DoctorID: doctor.ID, PatientID: patient.ID, Status: models.StatusConfirmed})

	record := models.MedicalRecord{
		PatientID:  patient.ID,
		RecordType: models.RecordOther,
		RecordDate: time.Now(),
		Title:      "Notes",
	}
	db.Create(&record)

	body, _ := json.Marshal(map[string]string{"title": "Tampered"})
	req := authed(httptest.NewRequest("PUT", fmt.Sprintf("/records/%d", record.ID), bytes.NewReader(body)), doctorUser.ID, models.RoleDoctor)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(record.ID)})
	rec := httptest.NewRecorder()
	handler.UpdateRecord(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
