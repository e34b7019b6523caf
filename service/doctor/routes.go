package doctor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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
	router.HandleFunc("/doctors", h.GetDoctors).Methods("GET")
	router.HandleFunc("/doctors/search", h.SearchDoctors).Methods("GET")
	router.HandleFunc("/doctors/{id}", h.GetDoctor).Methods("GET")
	router.HandleFunc("/doctors/{id}", utils.RequireRole(models.RoleDoctor, h.UpdateDoctor)).Methods("PUT")
	router.HandleFunc("/doctors/{id}/availability", utils.RequireRole(models.RoleDoctor, h.ToggleAvailability)).Methods("PATCH")
	router.HandleFunc("/doctors/{id}/ratings", utils.RequireRole(models.RolePatient, h.RateDoctor)).Methods("POST")
}

// GetDoctors lists doctors available for consultation. Pass all=true to
// include unavailable ones.
func (h *Handler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Doctor{})

	if r.URL.Query().Get("all") != "true" {
		query = query.Where("available_for_consultation = ?", true)
	}

	if specialization := r.URL.Query().Get("specialization"); specialization != "" {
		query = query.Where("specialization LIKE ?", "%"+specialization+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		http.Error(w, "Error counting doctors", http.StatusInternalServerError)
		return
	}

	var doctors []models.Doctor
	result := query.Order("rating DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&doctors)
	if result.Error != nil {
		http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctors":     doctors,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetDoctor retrieves a specific doctor by ID with ratings
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	result := h.db.Preload("Ratings").First(&doctor, doctorID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, "Doctor not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error retrieving doctor", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doctor)
}

// SearchDoctors searches by name or specialization
func (h *Handler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 10

	dbQuery := h.db.Model(&models.Doctor{})

	if query != "" {
		searchQuery := "%" + query + "%"
		dbQuery = dbQuery.Where(
			"full_name LIKE ? OR specialization LIKE ? OR hospital LIKE ?",
			searchQuery, searchQuery, searchQuery,
		)
	}

	var total int64
	dbQuery.Count(&total)

	var doctors []models.Doctor
	result := dbQuery.Offset((page - 1) * pageSize).Limit(pageSize).Find(&doctors)
	if result.Error != nil {
		http.Error(w, "Error searching doctors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctors":     doctors,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// UpdateDoctor updates the caller's own doctor card
func (h *Handler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, doctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	if doctor.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var updateRequest struct {
		FullName          string `json:"full_name"`
		Specialization    string `json:"specialization"`
		Hospital          string `json:"hospital"`
		YearsOfExperience *int   `json:"years_of_experience"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if updateRequest.FullName != "" {
		doctor.FullName = updateRequest.FullName
	}
	if updateRequest.Specialization != "" {
		doctor.Specialization = updateRequest.Specialization
	}
	if updateRequest.Hospital != "" {
		doctor.Hospital = updateRequest.Hospital
	}
	if updateRequest.YearsOfExperience != nil {
		doctor.YearsOfExperience = *updateRequest.YearsOfExperience
	}

	if err := h.db.Save(&doctor).Error; err != nil {
		http.Error(w, "Error updating doctor", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doctor)
}

// ToggleAvailability flips the doctor's available_for_consultation flag
func (h *Handler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	var toggleRequest struct {
		Available bool `json:"available_for_consultation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&toggleRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, doctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	if doctor.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	doctor.AvailableForConsultation = toggleRequest.Available
	if err := h.db.Save(&doctor).Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":                    "Availability updated",
		"available_for_consultation": doctor.AvailableForConsultation,
	})
}

// RateDoctor records a patient rating after a completed consultation and
// refreshes the doctor's aggregate.
func (h *Handler) RateDoctor(w http.ResponseWriter, r *http.Request) {
	patientID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	var rateRequest struct {
		Rating  float64 `json:"rating"`
		Comment string  `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&rateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if rateRequest.Rating < 0 || rateRequest.Rating > 5 {
		http.Error(w, "Rating must be between 0 and 5", http.StatusBadRequest)
		return
	}

	// Only patients who completed a consultation with the doctor may rate.
	var completed int64
	h.db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND patient_id = ? AND status = ?", doctorID, patientID, models.StatusCompleted).
		Count(&completed)
	if completed == 0 {
		http.Error(w, "No completed consultation with this doctor", http.StatusForbidden)
		return
	}

	tx := h.db.Begin()

	rating := models.DoctorRating{
		DoctorID:  uint(doctorID),
		PatientID: patientID,
		Rating:    rateRequest.Rating,
		Comment:   rateRequest.Comment,
	}
	if err := tx.Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Assign(models.DoctorRating{Rating: rateRequest.Rating, Comment: rateRequest.Comment}).
		FirstOrCreate(&rating).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error saving rating", http.StatusInternalServerError)
		return
	}

	var agg struct {
		Avg   float64
		Count int64
	}
	if err := tx.Model(&models.DoctorRating{}).
		Select("COALESCE(AVG(rating), 0) as avg, COUNT(*) as count").
		Where("doctor_id = ?", doctorID).
		Scan(&agg).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error aggregating ratings", http.StatusInternalServerError)
		return
	}

	if err := tx.Model(&models.Doctor{}).Where("id = ?", doctorID).Updates(map[string]interface{}{
		"rating":        agg.Avg,
		"total_ratings": agg.Count,
	}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating doctor rating", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error saving rating", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Rating saved",
		"rating":  agg.Avg,
	})
}
