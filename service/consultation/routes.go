package consultation

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	"github.com/swasthya-health/swasthya-server/cmd/utils"
	"github.com/swasthya-health/swasthya-server/service/ws"
	"gorm.io/gorm"
)

type Handler struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewHandler(db *gorm.DB) *Handler {
	hub := ws.NewHub()
	go hub.Run()

	return &Handler{
		db:  db,
		hub: hub,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEnvelope is the wire format on the consultation socket. Chat
// messages are persisted; signal payloads (offer/answer/candidate) are
// relayed opaquely to the other side.
type wsEnvelope struct {
	Type       string                      `json:"type"` // chat | signal | typing
	Content    string                      `json:"content,omitempty"`
	Signal     json.RawMessage             `json:"signal,omitempty"`
	SenderID   uint                        `json:"sender_id,omitempty"`
	SenderRole models.Role                 `json:"sender_role,omitempty"`
	PeerID     string                      `json:"peer_id,omitempty"`
	Message    *models.ConsultationMessage `json:"message,omitempty"`
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/{id}/eligibility", utils.AuthMiddleware(h.GetEligibility)).Methods("GET")
	router.HandleFunc("/appointments/{id}/messages", utils.AuthMiddleware(h.GetMessages)).Methods("GET")
	router.HandleFunc("/appointments/{id}/messages", utils.AuthMiddleware(h.SendMessage)).Methods("POST")
	router.HandleFunc("/appointments/{id}/ws", utils.AuthMiddleware(h.HandleWebSocket))
}

// loadForParticipant fetches the appointment and verifies the caller is
// the patient or the doctor on it.
func (h *Handler) loadForParticipant(w http.ResponseWriter, r *http.Request) (*models.Appointment, uint, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, 0, false
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return nil, 0, false
	}

	var appointment models.Appointment
	if err := h.db.Preload("Doctor").First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return nil, 0, false
	}

	isPatient := appointment.PatientID == userID
	isDoctor := appointment.Doctor != nil && appointment.Doctor.UserID == userID
	if !isPatient && !isDoctor {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, 0, false
	}

	return &appointment, userID, true
}

// GetEligibility exposes the shared gating predicate so both consoles
// render from the same answer.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	appointment, userID, ok := h.loadForParticipant(w, r)
	if !ok {
		return
	}

	role := models.RolePatient
	if appointment.Doctor != nil && appointment.Doctor.UserID == userID {
		role = models.RoleDoctor
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"eligible":       Eligible(appointment),
		"status":         appointment.Status,
		"payment_status": appointment.PaymentStatus,
		"peer_id":        PeerID(role, userID),
	})
}

// GetMessages returns the appointment's chat history, created_at
// ascending
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	appointment, _, ok := h.loadForParticipant(w, r)
	if !ok {
		return
	}

	var messages []models.ConsultationMessage
	if err := h.db.Where("appointment_id = ?", appointment.ID).
		Order("created_at asc").
		Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// SendMessage persists a chat message and broadcasts it to the live
// room
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	appointment, userID, ok := h.loadForParticipant(w, r)
	if !ok {
		return
	}

	if !Eligible(appointment) {
		http.Error(w, "Consultation is not enabled for this appointment", http.StatusForbidden)
		return
	}

	var sendRequest struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&sendRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if sendRequest.Content == "" {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}

	role := models.RolePatient
	if appointment.Doctor != nil && appointment.Doctor.UserID == userID {
		role = models.RoleDoctor
	}

	message := models.ConsultationMessage{
		AppointmentID: appointment.ID,
		SenderID:      userID,
		SenderRole:    role,
		Content:       sendRequest.Content,
	}

	if err := h.db.Create(&message).Error; err != nil {
		http.Error(w, "Error saving message", http.StatusInternalServerError)
		return
	}

	envelope, _ := json.Marshal(wsEnvelope{
		Type:       "chat",
		SenderID:   userID,
		SenderRole: role,
		Message:    &message,
	})
	h.hub.BroadcastToRoom(appointment.ID, envelope)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(message)
}

// HandleWebSocket joins the caller to the appointment's live room for
// chat fan-out and call signaling.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	appointment, userID, ok := h.loadForParticipant(w, r)
	if !ok {
		return
	}

	if !Eligible(appointment) {
		http.Error(w, "Consultation is not enabled for this appointment", http.StatusForbidden)
		return
	}

	role := models.RolePatient
	if appointment.Doctor != nil && appointment.Doctor.UserID == userID {
		role = models.RoleDoctor
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &ws.Client{
		Hub:           h.hub,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		UserID:        userID,
		Role:          string(role),
		AppointmentID: appointment.ID,
	}

	h.hub.Register <- client

	// Announce the peer so the counterparty learns our signaling id.
	joined, _ := json.Marshal(wsEnvelope{
		Type:       "signal",
		SenderID:   userID,
		SenderRole: role,
		PeerID:     PeerID(role, userID),
		Signal:     json.RawMessage(`{"event":"peer-joined"}`),
	})
	h.hub.BroadcastToPeers(appointment.ID, client, joined)

	go client.WritePump()
	go h.readPump(client, role)
}

func (h *Handler) readPump(client *ws.Client, role models.Role) {
	defer func() {
		h.hub.Unregister <- client
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		var envelope wsEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.Printf("error unmarshaling message: %v", err)
			continue
		}
		envelope.SenderID = client.UserID
		envelope.SenderRole = role

		switch envelope.Type {
		case "chat":
			if envelope.Content == "" {
				continue
			}
			message := models.ConsultationMessage{
				AppointmentID: client.AppointmentID,
				SenderID:      client.UserID,
				SenderRole:    role,
				Content:       envelope.Content,
			}
			if err := h.db.Create(&message).Error; err != nil {
				log.Printf("error saving consultation message: %v", err)
				continue
			}
			envelope.Content = ""
			envelope.Message = &message
			out, _ := json.Marshal(envelope)
			h.hub.BroadcastToRoom(client.AppointmentID, out)

		case "signal":
			// Opaque offer/answer/candidate relay; never echoed back
			// to the sender.
			envelope.PeerID = PeerID(role, client.UserID)
			out, _ := json.Marshal(envelope)
			h.hub.BroadcastToPeers(client.AppointmentID, client, out)

		case "typing":
			out, _ := json.Marshal(envelope)
			h.hub.BroadcastToPeers(client.AppointmentID, client, out)
		}
	}
}
