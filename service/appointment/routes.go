package appointment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

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
	router.HandleFunc("/appointments/book", utils.RequireRole(models.RolePatient, h.BookAppointment)).Methods("POST")
	router.HandleFunc("/appointments", utils.AuthMiddleware(h.GetMyAppointments)).Methods("GET")
	router.HandleFunc("/appointments/{id}", utils.AuthMiddleware(h.GetAppointment)).Methods("GET")
	router.HandleFunc("/appointments/{id}/accept", utils.RequireRole(models.RoleDoctor, h.AcceptAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/decline", utils.RequireRole(models.RoleDoctor, h.DeclineAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id}/complete", utils.RequireRole(models.RoleDoctor, h.CompleteAppointment)).Methods("PATCH")
}

// BookAppointment creates a pending appointment. The fee comes from the
// specialization fee table at creation time.
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	patientID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var bookingRequest struct {
		DoctorID        uint      `json:"doctor_id"`
		AppointmentTime time.Time `json:"appointment_time"`
		Notes           string    `json:"notes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ValidateSlot(bookingRequest.AppointmentTime, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	var doctor models.Doctor
	if err := tx.First(&doctor, bookingRequest.DoctorID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	if !doctor.AvailableForConsultation {
		tx.Rollback()
		http.Error(w, "Doctor is not available for consultation", http.StatusConflict)
		return
	}

	var existingAppointment models.Appointment
	if err := tx.Where("doctor_id = ? AND appointment_time = ? AND status != ?",
		bookingRequest.DoctorID, bookingRequest.AppointmentTime, models.StatusCancelled).
		First(&existingAppointment).Error; err == nil {
		tx.Rollback()
		http.Error(w, "Time slot already booked", http.StatusConflict)
		return
	}

	appointment := models.Appointment{
		DoctorID:        bookingRequest.DoctorID,
		PatientID:       patientID,
		AppointmentTime: bookingRequest.AppointmentTime,
		Status:          models.StatusPending,
		Notes:           bookingRequest.Notes,
		PaymentStatus:   models.PaymentPending,
		PaymentAmount:   FeeForSpecialization(doctor.Specialization),
	}

	if err := tx.Create(&appointment).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating appointment", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing booking", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Doctor").Preload("Patient").First(&appointment, appointment.ID)

	h.notify(doctor.UserID, "New appointment request",
		fmt.Sprintf("You have a new appointment request for %s", appointment.AppointmentTime.Format("Jan 2 15:04")),
		appointment.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appointment)
}

// GetMyAppointments lists the caller's appointments, partitioned into
// upcoming and past. An appointment is past when its time is before the
// start of today or its status is terminal.
func (h *Handler) GetMyAppointments(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, err := utils.GetRoleFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := h.db.Model(&models.Appointment{})
	if role == models.RoleDoctor {
		var doctor models.Doctor
		if err := h.db.Where("user_id = ?", userID).First(&doctor).Error; err != nil {
			http.Error(w, "Doctor profile not found", http.StatusNotFound)
			return
		}
		query = query.Where("doctor_id = ?", doctor.ID).Preload("Patient")
	} else {
		query = query.Where("patient_id = ?", userID).Preload("Doctor")
	}

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var appointments []models.Appointment
	if err := query.Order("appointment_time ASC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	upcoming := make([]models.Appointment, 0)
	past := make([]models.Appointment, 0)
	for _, a := range appointments {
		if a.IsPast(now) {
			past = append(past, a)
		} else {
			upcoming = append(upcoming, a)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"upcoming": upcoming,
		"past":     past,
		"total":    len(appointments),
	})
}

// GetAppointment retrieves a specific appointment for one of its
// participants
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.Preload("Doctor").Preload("Patient").First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	if !h.isParticipant(&appointment, userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

// AcceptAppointment: doctor confirms a pending appointment
func (h *Handler) AcceptAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusConfirmed, "Appointment confirmed",
		"Your appointment has been confirmed. Please complete the payment to enable consultation.")
}

// DeclineAppointment: doctor declines a pending appointment
func (h *Handler) DeclineAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusCancelled, "Appointment declined",
		"Your appointment request was declined by the doctor.")
}

// CompleteAppointment: doctor marks a confirmed appointment as done
// after the consultation ends
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusCompleted, "Consultation completed",
		"Your consultation has been marked as completed.")
}

// transition applies a doctor-initiated status change, validated
// against the state machine.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, to models.AppointmentStatus, title, body string) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.Preload("Doctor").First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	if appointment.Doctor == nil || appointment.Doctor.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !models.CanTransition(appointment.Status, to) {
		http.Error(w, fmt.Sprintf("Cannot move appointment from %s to %s", appointment.Status, to), http.StatusConflict)
		return
	}

	if err := h.db.Model(&appointment).Update("status", to).Error; err != nil {
		http.Error(w, "Error updating appointment", http.StatusInternalServerError)
		return
	}

	h.notify(appointment.PatientID, title, body, appointment.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": title,
		"status":  to,
	})
}

// CancelAppointment: patient cancels a pending or confirmed
// appointment
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.Preload("Doctor").First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	if !h.isParticipant(&appointment, userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !models.CanTransition(appointment.Status, models.StatusCancelled) {
		http.Error(w, fmt.Sprintf("Cannot cancel a %s appointment", appointment.Status), http.StatusConflict)
		return
	}

	if err := h.db.Model(&appointment).Update("status", models.StatusCancelled).Error; err != nil {
		http.Error(w, "Error cancelling appointment", http.StatusInternalServerError)
		return
	}

	// Tell the other party
	var recipient uint
	if appointment.PatientID == userID && appointment.Doctor != nil {
		recipient = appointment.Doctor.UserID
	} else {
		recipient = appointment.PatientID
	}
	h.notify(recipient, "Appointment cancelled",
		fmt.Sprintf("The appointment for %s has been cancelled", appointment.AppointmentTime.Format("Jan 2 15:04")),
		appointment.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Appointment cancelled successfully",
	})
}

func (h *Handler) isParticipant(appointment *models.Appointment, userID uint) bool {
	if appointment.PatientID == userID {
		return true
	}
	doctor := appointment.Doctor
	if doctor == nil {
		var d models.Doctor
		if err := h.db.First(&d, appointment.DoctorID).Error; err != nil {
			return false
		}
		doctor = &d
	}
	return doctor.UserID == userID
}

func (h *Handler) notify(userID uint, title, body string, appointmentID uint) {
	if h.notifier == nil {
		return
	}
	go func() {
		if err := h.notifier.NotifyUser(userID, title, body, map[string]interface{}{
			"appointment_id": appointmentID,
		}); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error notifying user %d: %v", userID, err)
		}
	}()
}
