package assistant

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/swasthya-health/swasthya-server/cmd/utils"
)

type Handler struct {
	classifier *Classifier
}

func NewHandler() *Handler {
	return &Handler{classifier: NewClassifier()}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/assistant/symptoms", utils.AuthMiddleware(h.CheckSymptoms)).Methods("POST")
	router.HandleFunc("/assistant/mood", utils.AuthMiddleware(h.DetectMood)).Methods("GET")
}

func (h *Handler) CheckSymptoms(w http.ResponseWriter, r *http.Request) {
	var checkRequest struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&checkRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if checkRequest.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	assessment := h.classifier.Classify(checkRequest.Message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assessment)
}

func (h *Handler) DetectMood(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"mood": h.classifier.Mood(),
	})
}
