package indiastack

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

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
	router.HandleFunc("/abha/validate", utils.AuthMiddleware(h.ValidateABHA)).Methods("POST")
	router.HandleFunc("/abha/link", utils.AuthMiddleware(h.LinkABHA)).Methods("POST")
	router.HandleFunc("/abha/unlink", utils.AuthMiddleware(h.UnlinkABHA)).Methods("POST")
	router.HandleFunc("/digilocker/documents", utils.AuthMiddleware(h.GetDigiLockerDocuments)).Methods("GET")
}

// normalizeABHA strips separators and validates the 14-digit ABHA
// number, returning it in the XX-XXXX-XXXX-XXXX display format.
func normalizeABHA(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", fmt.Errorf("ABHA number contains invalid characters")
		}
	}

	s := digits.String()
	if len(s) != 14 {
		return "", fmt.Errorf("ABHA number must be 14 digits")
	}

	return fmt.Sprintf("%s-%s-%s-%s", s[0:2], s[2:6], s[6:10], s[10:14]), nil
}

func (h *Handler) ValidateABHA(w http.ResponseWriter, r *http.Request) {
	var validateRequest struct {
		HealthID string `json:"health_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&validateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	formatted, err := normalizeABHA(validateRequest.HealthID)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":  false,
			"reason": err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"valid":     true,
		"health_id": formatted,
	})
}

// LinkABHA stores the validated ABHA number on the caller's profile.
// This is a mock link: no call to the real ABDM registry is made.
func (h *Handler) LinkABHA(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var linkRequest struct {
		HealthID string `json:"health_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&linkRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	formatted, err := normalizeABHA(linkRequest.HealthID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var profile models.Profile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	if err := h.db.Model(&profile).Update("health_id", formatted).Error; err != nil {
		http.Error(w, "Error linking ABHA", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "ABHA linked successfully",
		"health_id": formatted,
	})
}

func (h *Handler) UnlinkABHA(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var profile models.Profile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if profile.HealthID == "" {
		http.Error(w, "No ABHA linked", http.StatusConflict)
		return
	}

	if err := h.db.Model(&profile).Update("health_id", "").Error; err != nil {
		http.Error(w, "Error unlinking ABHA", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "ABHA unlinked successfully"})
}

// GetDigiLockerDocuments returns a mock document list. Available only
// after an ABHA number has been linked.
func (h *Handler) GetDigiLockerDocuments(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var profile models.Profile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if profile.HealthID == "" {
		http.Error(w, "Link an ABHA number to access DigiLocker", http.StatusConflict)
		return
	}

	now := time.Now()
	documents := []map[string]interface{}{
		{
			"id":        fmt.Sprintf("DL-%d-001", userID),
			"name":      "COVID-19 Vaccination Certificate",
			"issuer":    "Ministry of Health and Family Welfare",
			"doc_type":  "certificate",
			"issued_at": now.AddDate(-2, 0, 0).Format("2006-01-02"),
		},
		{
			"id":        fmt.Sprintf("DL-%d-002", userID),
			"name":      "Health Insurance Policy",
			"issuer":    "National Health Authority",
			"doc_type":  "policy",
			"issued_at": now.AddDate(-1, -3, 0).Format("2006-01-02"),
		},
		{
			"id":        fmt.Sprintf("DL-%d-003", userID),
			"name":      "ABHA Health Card",
			"issuer":    "Ayushman Bharat Digital Mission",
			"doc_type":  "card",
			"issued_at": now.AddDate(0, -6, 0).Format("2006-01-02"),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"health_id": profile.HealthID,
		"documents": documents,
	})
}
