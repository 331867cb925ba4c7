package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Share methods.
const (
	ShareMethodLink  = "link"
	ShareMethodEmail = "email"
	ShareMethodQR    = "qr"
)

// FileShare tracks how an owner handed out an access link.
type FileShare struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FileID   uuid.UUID `gorm:"type:uuid;index" json:"file_id"`
	SharedBy uuid.UUID `gorm:"type:uuid" json:"shared_by"`

	ShareMethod    string `gorm:"size:20;default:link" json:"share_method"`
	RecipientEmail string `json:"recipient_email,omitempty"`

	IsNotified bool       `gorm:"default:false" json:"is_notified"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	File File `gorm:"foreignKey:FileID" json:"-"`
}

func (s *FileShare) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
