package records

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	"github.com/swasthya-health/swasthya-server/cmd/utils"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/records", utils.AuthMiddleware(h.CreateRecord)).Methods("POST")
	router.HandleFunc("/records", utils.AuthMiddleware(h.GetRecords)).Methods("GET")
	router.HandleFunc("/records/{id}", utils.AuthMiddleware(h.GetRecord)).Methods("GET")
	router.HandleFunc("/records/{id}", utils.AuthMiddleware(h.UpdateRecord)).Methods("PUT")
	router.HandleFunc("/records/{id}", utils.AuthMiddleware(h.DeleteRecord)).Methods("DELETE")
	router.HandleFunc("/records/{id}/attachments", utils.AuthMiddleware(h.UploadAttachment)).Methods("POST")
	router.HandleFunc("/patients/{patientId}/records", utils.RequireRole(models.RoleDoctor, h.GetPatientRecords)).Methods("GET")
}

func validRecordType(t models.MedicalRecordType) bool {
	switch t {
	case models.RecordConsultationNote, models.RecordLabResult, models.RecordPrescription,
		models.RecordImagingReport, models.RecordVaccination, models.RecordOther:
		return true
	}
	return false
}

func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest struct {
		RecordType models.MedicalRecordType `json:"record_type"`
		RecordDate time.Time                `json:"record_date"`
		Title      string                   `json:"title"`
		Department string                   `json:"department"`
		Summary    string                   `json:"summary"`
		Details    string                   `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if createRequest.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	if !validRecordType(createRequest.RecordType) {
		http.Error(w, "Invalid record type", http.StatusBadRequest)
		return
	}
	if createRequest.RecordDate.IsZero() {
		createRequest.RecordDate = time.Now()
	}

	record := models.MedicalRecord{
		PatientID:  userID,
		RecordType: createRequest.RecordType,
		RecordDate: createRequest.RecordDate,
		Title:      createRequest.Title,
		Department: createRequest.Department,
		Summary:    createRequest.Summary,
		Details:    createRequest.Details,
	}

	if err := h.db.Create(&record).Error; err != nil {
		http.Error(w, "Error creating record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// GetRecords lists the caller's own records, newest record_date first.
// Optional ?type= filter.
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := h.db.Where("patient_id = ?", userID)
	if recordType := r.URL.Query().Get("type"); recordType != "" {
		query = query.Where("record_type = ?", recordType)
	}

	var records []models.MedicalRecord
	if err := query.Preload("Attachments").
		Order("record_date DESC").
		Find(&records).Error; err != nil {
		http.Error(w, "Error retrieving records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// loadRecord fetches a record the caller may read: the owning patient,
// or a doctor with a non-cancelled appointment with that patient.
func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request, writeAccess bool) (*models.MedicalRecord, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	vars := mux.Vars(r)
	recordID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return nil, false
	}

	var record models.MedicalRecord
	if err := h.db.Preload("Attachments").First(&record, recordID).Error; err != nil {
		http.Error(w, "Record not found", http.StatusNotFound)
		return nil, false
	}

	if record.PatientID == userID {
		return &record, true
	}
	if !writeAccess && h.doctorTreats(userID, record.PatientID) {
		return &record, true
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
	return nil, false
}

// doctorTreats reports whether the user is a doctor with at least one
// non-cancelled appointment with the patient.
func (h *Handler) doctorTreats(userID, patientID uint) bool {
	var doctor models.Doctor
	if err := h.db.Where("user_id = ?", userID).First(&doctor).Error; err != nil {
		return false
	}

	var count int64
	h.db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND patient_id = ? AND status != ?", doctor.ID, patientID, models.StatusCancelled).
		Count(&count)
	return count > 0
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r, false)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r, true)
	if !ok {
		return
	}

	var updateRequest struct {
		RecordType *models.MedicalRecordType `json:"record_type"`
		RecordDate *time.Time                `json:"record_date"`
		Title      *string                   `json:"title"`
		Department *string                   `json:"department"`
		Summary    *string                   `json:"summary"`
		Details    *string                   `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.RecordType != nil {
		if !validRecordType(*updateRequest.RecordType) {
			http.Error(w, "Invalid record type", http.StatusBadRequest)
			return
		}
		updates["record_type"] = *updateRequest.RecordType
	}
	if updateRequest.RecordDate != nil {
		updates["record_date"] = *updateRequest.RecordDate
	}
	if updateRequest.Title != nil {
		if *updateRequest.Title == "" {
			http.Error(w, "Title cannot be empty", http.StatusBadRequest)
			return
		}
		updates["title"] = *updateRequest.Title
	}
	if updateRequest.Department != nil {
		updates["department"] = *updateRequest.Department
	}
	if updateRequest.Summary != nil {
		updates["summary"] = *updateRequest.Summary
	}
	if updateRequest.Details != nil {
		updates["details"] = *updateRequest.Details
	}

	if len(updates) > 0 {
		if err := h.db.Model(record).Updates(updates).Error; err != nil {
			http.Error(w, "Error updating record", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r, true)
	if !ok {
		return
	}

	tx := h.db.Begin()
	if err := tx.Where("medical_record_id = ?", record.ID).Delete(&models.RecordAttachment{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting record", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(record).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting record", http.StatusInternalServerError)
		return
	}
	tx.Commit()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Record deleted successfully"})
}

func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r, true)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(utils.MaxAttachmentSize); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filePath, err := utils.SaveRecordAttachment(file, header, record.PatientID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	attachment := models.RecordAttachment{
		MedicalRecordID: record.ID,
		FileName:        header.Filename,
		FilePath:        filePath,
		FileSize:        header.Size,
		MimeType:        header.Header.Get("Content-Type"),
	}

	if err := h.db.Create(&attachment).Error; err != nil {
		http.Error(w, "Error saving attachment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(attachment)
}

// GetPatientRecords lets a treating doctor browse a patient's records.
func (h *Handler) GetPatientRecords(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	patientID, err := strconv.ParseUint(vars["patientId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}

	if !h.doctorTreats(userID, uint(patientID)) {
		http.Error(w, "No treatment relationship with this patient", http.StatusForbidden)
		return
	}

	var records []models.MedicalRecord
	if err := h.db.Where("patient_id = ?", patientID).
		Preload("Attachments").
		Order("record_date DESC").
		Find(&records).Error; err != nil {
		http.Error(w, "Error retrieving records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
