package consultation

import (
	"crypto/sha256"
	"fmt"

	"github.com/swasthya-health/swasthya-server/cmd/models"
)

// Eligible is the single source of truth for consultation gating:
// chat and video are allowed only for confirmed, fully paid
// appointments. Every gate (REST, websocket, doctor or patient side)
// goes through this predicate.
func Eligible(a *models.Appointment) bool {
	return a.Status == models.StatusConfirmed && a.PaymentStatus == models.PaymentCompleted
}

// PeerID derives the deterministic signaling identifier for a
// participant: role plus the first 8 hex chars of the hashed user id.
// Both sides can compute the counterparty's id without a lookup.
func PeerID(role models.Role, userID uint) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", userID)))
	return fmt.Sprintf("%s-%.8x", role, sum[:4])
}
