package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Access methods recorded in the ledger.
const (
	MethodView              = "view"
	MethodDownload          = "download"
	MethodValidate          = "validate"
	MethodScreenshotAttempt = "screenshot_attempt"
)

// Identity kinds recorded in the ledger.
const (
	IdentityConsumer = "consumer" // authenticated user id
	IdentityIP       = "ip"       // anonymous, keyed by client IP
)

// AccessLog is one access attempt, granted or denied. Rows are append-only:
// session and per-consumer quota state is derived from this table, so entries
// are never updated or deleted by the backend.
type AccessLog struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FileID uuid.UUID `gorm:"type:uuid;index:idx_access_logs_file_created" json:"file_id"`

	IdentityKind  string `gorm:"size:20;index:idx_access_logs_identity" json:"identity_kind"`
	IdentityValue string `gorm:"size:64;index:idx_access_logs_identity" json:"identity_value"`

	IPAddress string `gorm:"size:45" json:"ip_address"`
	UserAgent string `json:"user_agent"`

	AccessGranted bool   `gorm:"default:false" json:"access_granted"`
	AccessMethod  string `gorm:"size:20;default:view" json:"access_method"`
	FailureReason string `gorm:"size:100" json:"failure_reason,omitempty"`

	// Opaque geo passthrough filled by an external enrichment step.
	Country string `gorm:"size:2" json:"country,omitempty"`
	City    string `gorm:"size:100" json:"city,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_access_logs_file_created" json:"created_at"`

	File File `gorm:"foreignKey:FileID" json:"-"`
}

func (a *AccessLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
