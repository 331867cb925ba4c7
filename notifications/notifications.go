package notifications

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/vaultshare/backend/models"
)

// Sender delivers one notification. Actual mail transport is an external
// collaborator; the backend only maintains the outbox.
type Sender interface {
	Send(n *models.EmailNotification) error
}

// LogSender is the delivery stub used until a real mail transport is wired
// in: it logs the notification and lets the row be marked sent.
type LogSender struct{}

func (LogSender) Send(n *models.EmailNotification) error {
	log.Printf("notification %s to %s: %s", n.TemplateName, n.Recipient, n.Subject)
	return nil
}

// QueueAccessNotification records that a file owner should be told their file
// was viewed or downloaded. Best effort: grant handling never fails because
// the outbox write did.
func QueueAccessNotification(db *gorm.DB, file *models.File, method, ipAddress string) {
	var owner models.User
	if err := db.First(&owner, "id = ?", file.UserID).Error; err != nil {
		log.Printf("access notification: owner lookup failed for file %s: %v", file.ID, err)
		return
	}
	if !owner.DownloadAlerts {
		return
	}

	context, err := json.Marshal(map[string]string{
		"filename":    file.OriginalName,
		"access_type": method,
		"ip_address":  ipAddress,
		"accessed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("access notification: marshal context: %v", err)
		return
	}

	notification := models.EmailNotification{
		Recipient:    owner.Email,
		Subject:      fmt.Sprintf("Your file %q was accessed", file.OriginalName),
		TemplateName: "file_accessed",
		ContextData:  string(context),
	}
	if err := db.Create(&notification).Error; err != nil {
		log.Printf("access notification: queue failed for file %s: %v", file.ID, err)
	}
}

// QueueShareNotification records an email share so the recipient gets the
// access link.
func QueueShareNotification(db *gorm.DB, file *models.File, recipient string) error {
	context, err := json.Marshal(map[string]string{
		"filename":   file.OriginalName,
		"access_url": file.AccessURL(),
	})
	if err != nil {
		return fmt.Errorf("marshal share context: %w", err)
	}

	notification := models.EmailNotification{
		Recipient:    recipient,
		Subject:      fmt.Sprintf("A file was shared with you: %s", file.OriginalName),
		TemplateName: "file_shared",
		ContextData:  string(context),
	}
	if err := db.Create(&notification).Error; err != nil {
		return fmt.Errorf("queue share notification: %w", err)
	}
	return nil
}

// QueueExpiryReminder records that a file enters its final day so the owner
// can extend or re-share it.
func QueueExpiryReminder(db *gorm.DB, file *models.File, owner *models.User) error {
	expiresAt := ""
	if file.ExpiresAt != nil {
		expiresAt = file.ExpiresAt.UTC().Format(time.RFC3339)
	}
	context, err := json.Marshal(map[string]string{
		"filename":   file.OriginalName,
		"expires_at": expiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal reminder context: %w", err)
	}

	notification := models.EmailNotification{
		Recipient:    owner.Email,
		Subject:      fmt.Sprintf("Your file %q expires soon", file.OriginalName),
		TemplateName: "file_expiring",
		ContextData:  string(context),
	}
	if err := db.Create(&notification).Error; err != nil {
		return fmt.Errorf("queue expiry reminder: %w", err)
	}
	return nil
}

// ProcessPending pushes unsent rows through the sender, recording failures on
// the row for a later retry.
func ProcessPending(db *gorm.DB, sender Sender, batchSize int) error {
	var pending []models.EmailNotification
	err := db.Where("is_sent = ?", false).
		Order("created_at asc").
		Limit(batchSize).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("load pending notifications: %w", err)
	}

	for i := range pending {
		n := &pending[i]
		if err := sender.Send(n); err != nil {
			db.Model(n).Updates(map[string]interface{}{
				"error_message": err.Error(),
				"retry_count":   gorm.Expr("retry_count + ?", 1),
			})
			continue
		}
		now := time.Now()
		db.Model(n).Updates(map[string]interface{}{
			"is_sent": true,
			"sent_at": &now,
		})
	}
	return nil
}
