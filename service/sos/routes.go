package sos

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	"github.com/swasthya-health/swasthya-server/cmd/utils"
	notification "github.com/swasthya-health/swasthya-server/service/notifications"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	notifier *notification.Notifier
}

func NewHandler(db *gorm.DB, notifier *notification.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sos/contacts", utils.AuthMiddleware(h.CreateContact)).Methods("POST")
	router.HandleFunc("/sos/contacts", utils.AuthMiddleware(h.GetContacts)).Methods("GET")
	router.HandleFunc("/sos/contacts/{id}", utils.AuthMiddleware(h.UpdateContact)).Methods("PUT")
	router.HandleFunc("/sos/contacts/{id}", utils.AuthMiddleware(h.DeleteContact)).Methods("DELETE")
	router.HandleFunc("/sos/contacts/{id}/primary", utils.AuthMiddleware(h.SetPrimary)).Methods("PATCH")
	router.HandleFunc("/sos/trigger", utils.AuthMiddleware(h.TriggerSOS)).Methods("POST")
}

// CreateContact adds a contact; the first one for a user becomes
// primary automatically.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest struct {
		Name     string `json:"name"`
		Relation string `json:"relation"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if createRequest.Name == "" || createRequest.Phone == "" {
		http.Error(w, "Name and phone are required", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	var count int64
	if err := tx.Model(&models.EmergencyContact{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating contact", http.StatusInternalServerError)
		return
	}

	contact := models.EmergencyContact{
		UserID:    userID,
		Name:      createRequest.Name,
		Relation:  createRequest.Relation,
		Phone:     createRequest.Phone,
		IsPrimary: count == 0,
	}

	if err := tx.Create(&contact).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating contact", http.StatusInternalServerError)
		return
	}
	tx.Commit()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(contact)
}

func (h *Handler) GetContacts(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var contacts []models.EmergencyContact
	if err := h.db.Where("user_id = ?", userID).
		Order("is_primary DESC, created_at ASC").
		Find(&contacts).Error; err != nil {
		http.Error(w, "Error retrieving contacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contacts)
}

func (h *Handler) loadContact(w http.ResponseWriter, r *http.Request) (*models.EmergencyContact, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	vars := mux.Vars(r)
	contactID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid contact ID", http.StatusBadRequest)
		return nil, false
	}

	var contact models.EmergencyContact
	if err := h.db.First(&contact, contactID).Error; err != nil {
		http.Error(w, "Contact not found", http.StatusNotFound)
		return nil, false
	}
	if contact.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}

	return &contact, true
}

func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := h.loadContact(w, r)
	if !ok {
		return
	}

	var updateRequest struct {
		Name     *string `json:"name"`
		Relation *string `json:"relation"`
		Phone    *string `json:"phone"`
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
	if updateRequest.Relation != nil {
		updates["relation"] = *updateRequest.Relation
	}
	if updateRequest.Phone != nil {
		if *updateRequest.Phone == "" {
			http.Error(w, "Phone cannot be empty", http.StatusBadRequest)
			return
		}
		updates["phone"] = *updateRequest.Phone
	}

	if len(updates) > 0 {
		if err := h.db.Model(contact).Updates(updates).Error; err != nil {
			http.Error(w, "Error updating contact", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contact)
}

// SetPrimary promotes a contact; the previous primary is demoted in
// the same transaction.
func (h *Handler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	contact, ok := h.loadContact(w, r)
	if !ok {
		return
	}

	if contact.IsPrimary {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(contact)
		return
	}

	tx := h.db.Begin()
	if err := tx.Model(&models.EmergencyContact{}).
		Where("user_id = ? AND is_primary = ?", contact.UserID, true).
		Update("is_primary", false).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating contacts", http.StatusInternalServerError)
		return
	}
	if err := tx.Model(contact).Update("is_primary", true).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating contacts", http.StatusInternalServerError)
		return
	}
	tx.Commit()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contact)
}

// DeleteContact removes a contact; deleting the primary promotes the
// oldest remaining one.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := h.loadContact(w, r)
	if !ok {
		return
	}

	tx := h.db.Begin()
	if err := tx.Delete(contact).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting contact", http.StatusInternalServerError)
		return
	}

	if contact.IsPrimary {
		var oldest models.EmergencyContact
		err := tx.Where("user_id = ?", contact.UserID).
			Order("created_at ASC").
			First(&oldest).Error
		if err == nil {
			if err := tx.Model(&oldest).Update("is_primary", true).Error; err != nil {
				tx.Rollback()
				http.Error(w, "Error deleting contact", http.StatusInternalServerError)
				return
			}
		} else if err != gorm.ErrRecordNotFound {
			tx.Rollback()
			http.Error(w, "Error deleting contact", http.StatusInternalServerError)
			return
		}
	}
	tx.Commit()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Contact deleted successfully"})
}

// TriggerSOS fans an alert out to the user's own devices and returns
// the contact list (primary first) so the client can place calls and
// send SMS.
func (h *Handler) TriggerSOS(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var triggerRequest struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Message   string  `json:"message"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&triggerRequest)
	}

	var contacts []models.EmergencyContact
	if err := h.db.Where("user_id = ?", userID).
		Order("is_primary DESC, created_at ASC").
		Find(&contacts).Error; err != nil {
		http.Error(w, "Error retrieving contacts", http.StatusInternalServerError)
		return
	}
	if len(contacts) == 0 {
		http.Error(w, "No emergency contacts configured", http.StatusConflict)
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		http.Error(w, "Error retrieving user", http.StatusInternalServerError)
		return
	}

	body := fmt.Sprintf("%s has triggered an SOS alert", user.FullName)
	if triggerRequest.Latitude != 0 || triggerRequest.Longitude != 0 {
		body = fmt.Sprintf("%s at (%.5f, %.5f)", body, triggerRequest.Latitude, triggerRequest.Longitude)
	}
	if h.notifier != nil {
		go h.notifier.NotifyUser(userID, "SOS alert sent", body, map[string]interface{}{
			"type": "sos",
		})
	}

	// SMS delivery to the primary contact is stubbed; log the intent.
	log.Printf("SOS: would SMS %s (%s): %s", contacts[0].Name, contacts[0].Phone, body)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  "SOS triggered",
		"contacts": contacts,
	})
}
