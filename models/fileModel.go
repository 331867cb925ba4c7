package models

import (
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is one shared artifact and the policy that governs access to it.
// CurrentViews is written only by the access servicer's conditional update;
// no other code path may touch it.
type File struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index:idx_files_user_active" json:"user_id"`

	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	FileHash     string `gorm:"size:64" json:"file_hash"` // SHA256
	ContentType  string `json:"content_type"`

	S3Key    string `gorm:"uniqueIndex;size:512" json:"-"`
	S3Bucket string `json:"-"`

	AccessToken  string  `gorm:"uniqueIndex;size:64" json:"access_token"`
	PasswordHash *string `json:"-"`

	ExpiryHours int        `gorm:"default:24" json:"expiry_hours"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at"`

	MaxViews     int `gorm:"default:10" json:"max_views"`
	CurrentViews int `gorm:"default:0" json:"current_views"`

	// Minutes; repeat grants by the same identity inside this window do not
	// increment CurrentViews.
	SessionDuration int `gorm:"default:15" json:"session_duration"`

	RequireSignin       bool `gorm:"default:false" json:"require_signin"`
	MaxViewsPerConsumer int  `gorm:"default:0" json:"max_views_per_consumer"` // 0 = unlimited
	DisableDownload     bool `gorm:"default:false" json:"disable_download"`

	IsActive  bool       `gorm:"index:idx_files_user_active" json:"is_active"`
	IsDeleted bool       `gorm:"default:false" json:"-"`
	DeletedAt *time.Time `json:"-"`

	// BlobDeleted tracks whether the S3 object is gone; soft-deleted records
	// keep their blob until the cleanup sweep removes it.
	BlobDeleted bool `gorm:"default:false" json:"-"`

	// ExpiryReminderSent dedupes the owner's expiring-soon notification.
	ExpiryReminderSent bool `gorm:"default:false" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (f *File) SessionWindow() time.Duration {
	if f.SessionDuration <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(f.SessionDuration) * time.Minute
}

func (f *File) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && now.After(*f.ExpiresAt)
}

func (f *File) ViewLimitReached() bool {
	return f.CurrentViews >= f.MaxViews
}

func (f *File) ViewsRemaining() int {
	if remaining := f.MaxViews - f.CurrentViews; remaining > 0 {
		return remaining
	}
	return 0
}

func (f *File) TimeRemaining(now time.Time) time.Duration {
	if f.ExpiresAt == nil {
		return 0
	}
	if remaining := f.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// AccessURL is the link consumers open, served by the frontend.
func (f *File) AccessURL() string {
	return os.Getenv("FRONTEND_URL") + "/access/" + f.AccessToken
}
