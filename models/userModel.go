package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultStorageQuota = 5 * 1024 * 1024 * 1024 // 5 GB

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"unique;not null"`
	Name         string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Storage quota tracking, bytes.
	StorageUsed  int64 `gorm:"default:0"`
	StorageQuota int64 `gorm:"default:5368709120"`

	DownloadAlerts  bool `gorm:"default:true"`
	ExpiryReminders bool `gorm:"default:true"`

	GoogleID           *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GitHubID           *string `gorm:"uniqueIndex" json:"github_id,omitempty"`
	GoogleAccessToken  *string `json:"-"`
	GoogleRefreshToken *string `json:"-"`
	GitHubAccessToken  *string `json:"-"`
	Provider           *string `json:"provider,omitempty"`

	GoogleTokenExpiresAt *time.Time `json:"-"`
	GitHubTokenExpiresAt *time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.StorageQuota == 0 {
		u.StorageQuota = DefaultStorageQuota
	}
	return nil
}

// ReserveStorage atomically claims size bytes of the user's quota. The
// conditional update is the only guard against concurrent uploads
// overshooting the quota; callers must release the claim if the upload fails
// after it.
func ReserveStorage(db *gorm.DB, userID uuid.UUID, size int64) (bool, error) {
	res := db.Model(&User{}).
		Where("id = ? AND storage_used + ? <= storage_quota", userID, size).
		UpdateColumn("storage_used", gorm.Expr("storage_used + ?", size))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseStorage returns size bytes to the user's quota.
func ReleaseStorage(db *gorm.DB, userID uuid.UUID, size int64) error {
	return db.Model(&User{}).
		Where("id = ?", userID).
		UpdateColumn("storage_used", gorm.Expr("storage_used - ?", size)).Error
}
