package payment

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	"github.com/swasthya-health/swasthya-server/cmd/utils"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	gateway Gateway
}

func NewHandler(db *gorm.DB, gateway Gateway) *Handler {
	return &Handler{db: db, gateway: gateway}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/{id}/pay", utils.RequireRole(models.RolePatient, h.PayAppointment)).Methods("POST")
	router.HandleFunc("/appointments/{id}/upi-link", utils.RequireRole(models.RolePatient, h.GetUPILink)).Methods("GET")
	router.HandleFunc("/payments", utils.AuthMiddleware(h.GetPayments)).Methods("GET")
}

// PayAppointment records a payment for a confirmed, unpaid
// appointment. The payment row and the appointment's payment_status
// are written in one transaction so they can never diverge.
func (h *Handler) PayAppointment(w http.ResponseWriter, r *http.Request) {
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

	var payRequest struct {
		Method string  `json:"payment_method"`
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	method := models.PaymentMethod(payRequest.Method)
	if !method.Valid() {
		http.Error(w, "Payment method must be upi or card", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	if appointment.PatientID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if appointment.Status != models.StatusConfirmed {
		http.Error(w, "Appointment must be confirmed before payment", http.StatusConflict)
		return
	}

	if appointment.PaymentStatus == models.PaymentCompleted {
		http.Error(w, "Appointment is already paid", http.StatusConflict)
		return
	}

	if payRequest.Amount != appointment.PaymentAmount {
		http.Error(w, fmt.Sprintf("Amount must be %.2f", appointment.PaymentAmount), http.StatusBadRequest)
		return
	}

	reference, chargeErr := h.gateway.Charge(payRequest.Method, payRequest.Amount)

	status := models.PaymentCompleted
	if chargeErr != nil {
		status = models.PaymentFailed
	}

	tx := h.db.Begin()

	payment := models.Payment{
		AppointmentID: appointment.ID,
		UserID:        userID,
		Amount:        payRequest.Amount,
		Method:        method,
		Status:        status,
		Reference:     reference,
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error recording payment", http.StatusInternalServerError)
		return
	}

	if status == models.PaymentCompleted {
		if err := tx.Model(&appointment).Updates(map[string]interface{}{
			"payment_status": models.PaymentCompleted,
			"payment_amount": payRequest.Amount,
		}).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error updating appointment", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing payment", http.StatusInternalServerError)
		return
	}

	if chargeErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":   chargeErr.Error(),
			"status":    status,
			"reference": reference,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Payment completed",
		"status":    status,
		"reference": reference,
		"payment":   payment,
	})
}

// GetUPILink builds the upi://pay deep link and QR image URL for an
// appointment's fee.
func (h *Handler) GetUPILink(w http.ResponseWriter, r *http.Request) {
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

	if appointment.PatientID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	payeeID := os.Getenv("UPI_PAYEE_ID")
	if payeeID == "" {
		payeeID = "swasthya@upi"
	}
	payeeName := os.Getenv("UPI_PAYEE_NAME")
	if payeeName == "" {
		payeeName = "Swasthya Health"
	}

	note := "Consultation fee"
	if appointment.Doctor != nil {
		note = fmt.Sprintf("Consultation with %s", appointment.Doctor.FullName)
	}

	link := BuildUPILink(payeeID, payeeName, appointment.PaymentAmount, note)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"upi_link": link,
		"qr_url":   UPIQRCodeURL(link),
	})
}

// GetPayments lists the caller's payment history, newest first
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Payment{}).Where("user_id = ?", userID)

	var total int64
	query.Count(&total)

	var payments []models.Payment
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&payments).Error; err != nil {
		http.Error(w, "Error retrieving payments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"payments":    payments,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
