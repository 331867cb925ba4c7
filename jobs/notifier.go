package jobs

import (
	"log"
	"time"

	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/notifications"
)

const notificationBatchSize = 50

// StartNotificationJob drains the email outbox on a fixed cadence through the
// given sender.
func StartNotificationJob(sender notifications.Sender) {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for range ticker.C {
			if err := notifications.ProcessPending(initializers.DB, sender, notificationBatchSize); err != nil {
				log.Printf("notification sweep failed: %v", err)
			}
		}
	}()
}
