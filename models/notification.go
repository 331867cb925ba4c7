package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailNotification is an outbox row for outbound mail. Delivery itself is an
// external collaborator; the backend only records what should be sent and
// whether it was.
type EmailNotification struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Recipient    string `gorm:"index:idx_notifications_recipient_sent" json:"recipient"`
	Subject      string `json:"subject"`
	TemplateName string `gorm:"size:100" json:"template_name"`

	// JSON-encoded template context.
	ContextData string `json:"context_data"`

	IsSent bool       `gorm:"default:false;index:idx_notifications_recipient_sent" json:"is_sent"`
	SentAt *time.Time `json:"sent_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `gorm:"default:0" json:"retry_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *EmailNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
