package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/swasthya-health/swasthya-server/cmd/models"
	"gorm.io/gorm"
)

// Notifier pushes to all of a user's registered devices and records the
// outcome in notification history. Send failures are logged, never
// fatal to the caller's request.
type Notifier struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

// NotifyUser sends a push notification to every device the user has
// registered. Returns the delivery status recorded in history.
func (n *Notifier) NotifyUser(userID uint, title, body string, data map[string]interface{}) error {
	var devices []models.Device
	if err := n.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return fmt.Errorf("error retrieving devices: %w", err)
	}

	var tokens []string
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}

	var sendErr error
	status := "sent"
	if len(tokens) == 0 {
		status = "skipped"
	} else if _, err := n.send(tokens, title, body, data); err != nil {
		status = "failed"
		sendErr = err
	}

	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   string(dataJSON),
		Status: status,
		SentAt: time.Now(),
	}
	if err := n.db.Create(&history).Error; err != nil {
		log.Printf("Error creating notification history: %v", err)
	}

	return sendErr
}

// send delivers through the Expo push service.
func (n *Notifier) send(tokenStrings []string, title, body string, data map[string]interface{}) (bool, error) {
	var validTokens []expo.ExponentPushToken
	var invalidTokens []string

	for _, tokenString := range tokenStrings {
		pushToken, err := expo.NewExponentPushToken(tokenString)
		if err != nil {
			log.Printf("Invalid push token format %s: %v", tokenString, err)
			invalidTokens = append(invalidTokens, tokenString)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}

	if len(validTokens) == 0 {
		return false, fmt.Errorf("no valid push tokens found")
	}

	var stringData map[string]string
	if data != nil {
		stringData = make(map[string]string)
		for key, value := range data {
			stringData[key] = fmt.Sprintf("%v", value)
		}
	}

	pushMessage := &expo.PushMessage{
		To:       validTokens,
		Body:     body,
		Title:    title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	}

	response, err := n.expoClient.Publish(pushMessage)
	if err != nil {
		return false, fmt.Errorf("failed to publish notification: %v", err)
	}

	if validationErr := response.ValidateResponse(); validationErr != nil {
		log.Printf("Push notification validation error: %v", validationErr)
		n.cleanupInvalidTokens(invalidTokens)
		return false, fmt.Errorf("notification validation failed: %v", validationErr)
	}

	if len(invalidTokens) > 0 {
		n.cleanupInvalidTokens(invalidTokens)
	}

	return true, nil
}

func (n *Notifier) cleanupInvalidTokens(tokens []string) {
	for _, token := range tokens {
		if err := n.db.Where("token = ?", token).Delete(&models.Device{}).Error; err != nil {
			log.Printf("Error cleaning up invalid token %s: %v", token, err)
		} else {
			log.Printf("Cleaned up invalid token: %s", token)
		}
	}
}
