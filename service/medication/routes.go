package medication

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/lib/pq"
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
	router.HandleFunc("/medications", utils.AuthMiddleware(h.CreateMedication)).Methods("POST")
	router.HandleFunc("/medications", utils.AuthMiddleware(h.GetMedications)).Methods("GET")
	router.HandleFunc("/medications/{id}", utils.AuthMiddleware(h.UpdateMedication)).Methods("PUT")
	router.HandleFunc("/medications/{id}", utils.AuthMiddleware(h.DeleteMedication)).Methods("DELETE")
	router.HandleFunc("/medications/reminders", utils.AuthMiddleware(h.GetReminders)).Methods("GET")
	router.HandleFunc("/medications/reminders/{id}/taken", utils.AuthMiddleware(h.MarkReminderTaken)).Methods("PATCH")
}

// validScheduleTime accepts "HH:MM" wall-clock entries.
func validScheduleTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func (h *Handler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest struct {
		Name              string   `json:"name"`
		Dosage            string   `json:"dosage"`
		ScheduleTimes     []string `json:"schedule_times"`
		QuantityRemaining int      `json:"quantity_remaining"`
		Instructions      string   `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if createRequest.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	for _, scheduleTime := range createRequest.ScheduleTimes {
		if !validScheduleTime(scheduleTime) {
			http.Error(w, "Schedule times must be in HH:MM format", http.StatusBadRequest)
			return
		}
	}
	if createRequest.QuantityRemaining < 0 {
		http.Error(w, "Quantity cannot be negative", http.StatusBadRequest)
		return
	}

	medication := models.Medication{
		UserID:            userID,
		Name:              createRequest.Name,
		Dosage:            createRequest.Dosage,
		ScheduleTimes:     pq.StringArray(createRequest.ScheduleTimes),
		QuantityRemaining: createRequest.QuantityRemaining,
		Instructions:      createRequest.Instructions,
	}

	tx := h.db.Begin()
	if err := tx.Create(&medication).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating medication", http.StatusInternalServerError)
		return
	}

	// Seed the first occurrence of each schedule time; the reminder
	// sweep re-enqueues a dose for the next day whenever one fires.
	now := time.Now()
	for _, scheduleTime := range createRequest.ScheduleTimes {
		parsed, _ := time.Parse("15:04", scheduleTime)
		remindAt := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		if remindAt.Before(now) {
			remindAt = remindAt.AddDate(0, 0, 1)
		}
		reminder := models.MedicationReminder{
			MedicationID: medication.ID,
			UserID:       userID,
			RemindAt:     remindAt,
		}
		if err := tx.Create(&reminder).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error creating reminders", http.StatusInternalServerError)
			return
		}
	}
	tx.Commit()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(medication)
}

func (h *Handler) GetMedications(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var medications []models.Medication
	if err := h.db.Where("user_id = ?", userID).
		Order("name ASC").
		Find(&medications).Error; err != nil {
		http.Error(w, "Error retrieving medications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(medications)
}

func (h *Handler) loadMedication(w http.ResponseWriter, r *http.Request) (*models.Medication, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	vars := mux.Vars(r)
	medicationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return nil, false
	}

	var medication models.Medication
	if err := h.db.First(&medication, medicationID).Error; err != nil {
		http.Error(w, "Medication not found", http.StatusNotFound)
		return nil, false
	}
	if medication.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}

	return &medication, true
}

func (h *Handler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	medication, ok := h.loadMedication(w, r)
	if !ok {
		return
	}

	var updateRequest struct {
		Name              *string   `json:"name"`
		Dosage            *string   `json:"dosage"`
		ScheduleTimes     *[]string `json:"schedule_times"`
		QuantityRemaining *int      `json:"quantity_remaining"`
		Instructions      *string   `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.Name != nil {
		if *updateRequest.Name == "" {
			http.Error(w, "Name cannot be empty", http.StatusBadRequest)
			return
		}
		updates["name"] = *updateRequest.Name
	}
	if updateRequest.Dosage != nil {
		updates["dosage"] = *updateRequest.Dosage
	}
	if updateRequest.ScheduleTimes != nil {
		for _, scheduleTime := range *updateRequest.ScheduleTimes {
			if !validScheduleTime(scheduleTime) {
				http.Error(w, "Schedule times must be in HH:MM format", http.StatusBadRequest)
				return
			}
		}
		updates["schedule_times"] = pq.StringArray(*updateRequest.ScheduleTimes)
	}
	if updateRequest.QuantityRemaining != nil {
		if *updateRequest.QuantityRemaining < 0 {
			http.Error(w, "Quantity cannot be negative", http.StatusBadRequest)
			return
		}
		updates["quantity_remaining"] = *updateRequest.QuantityRemaining
	}
	if updateRequest.Instructions != nil {
		updates["instructions"] = *updateRequest.Instructions
	}

	if len(updates) > 0 {
		if err := h.db.Model(medication).Updates(updates).Error; err != nil {
			http.Error(w, "Error updating medication", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(medication)
}

func (h *Handler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	medication, ok := h.loadMedication(w, r)
	if !ok {
		return
	}

	tx := h.db.Begin()
	if err := tx.Where("medication_id = ?", medication.ID).Delete(&models.MedicationReminder{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting medication", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(medication).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting medication", http.StatusInternalServerError)
		return
	}
	tx.Commit()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Medication deleted successfully"})
}

// GetReminders lists the caller's reminders. ?pending=true narrows to
// doses not yet taken.
func (h *Handler) GetReminders(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := h.db.Where("user_id = ?", userID)
	if r.URL.Query().Get("pending") == "true" {
		query = query.Where("taken = ?", false)
	}

	var reminders []models.MedicationReminder
	if err := query.Preload("Medication").
		Order("remind_at ASC").
		Find(&reminders).Error; err != nil {
		http.Error(w, "Error retrieving reminders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reminders)
}

// MarkReminderTaken flips the reminder exactly once and decrements the
// medication's remaining quantity, clamped at zero. Both writes happen
// in one transaction.
func (h *Handler) MarkReminderTaken(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	reminderID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid reminder ID", http.StatusBadRequest)
		return
	}

	var reminder models.MedicationReminder
	if err := h.db.First(&reminder, reminderID).Error; err != nil {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}
	if reminder.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if reminder.Taken {
		http.Error(w, "Reminder already marked as taken", http.StatusConflict)
		return
	}

	tx := h.db.Begin()
	if err := tx.Model(&reminder).Update("taken", true).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating reminder", http.StatusInternalServerError)
		return
	}

	var medication models.Medication
	if err := tx.First(&medication, reminder.MedicationID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating medication", http.StatusInternalServerError)
		return
	}
	if medication.QuantityRemaining > 0 {
		medication.QuantityRemaining--
		if err := tx.Model(&medication).
			Update("quantity_remaining", medication.QuantityRemaining).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error updating medication", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error saving changes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":            "Reminder marked as taken",
		"quantity_remaining": medication.QuantityRemaining,
	})
}
