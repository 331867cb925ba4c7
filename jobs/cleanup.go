package jobs

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/models"
	"github.com/vaultshare/backend/notifications"
)

const cleanupBatchSize = 100

// objectDeleter is the slice of the S3 client the sweep needs.
type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

func maxFileAgeDays() int {
	if v, err := strconv.Atoi(os.Getenv("MAX_FILE_AGE_DAYS")); err == nil && v > 0 {
		return v
	}
	return 30
}

// StartCleanupJob sweeps hourly: expiry reminders first, then blob and record
// reaping for artifacts that are expired, view-exhausted, owner-deleted, or
// past the maximum age.
func StartCleanupJob() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			ctx := context.Background()

			queued, err := NotifyExpiringFiles(ctx, initializers.DB)
			if err != nil {
				log.Printf("expiry reminder sweep failed: %v", err)
			} else if queued > 0 {
				log.Printf("queued %d expiry reminders", queued)
			}

			reaped, err := CleanupExpiredFiles(ctx, initializers.DB, initializers.S3Client)
			if err != nil {
				log.Printf("cleanup sweep failed: %v", err)
				continue
			}
			if reaped > 0 {
				log.Printf("cleanup sweep reaped %d files", reaped)
			}
		}
	}()
}

// CleanupExpiredFiles removes the blobs of qualifying records, soft-deletes
// records that still look live and credits their owners' storage quota.
// Owner-deleted rows were already credited at delete time; the sweep only
// removes their orphaned blob. Batch-bound so one sweep never runs away; the
// next tick picks up the rest.
func CleanupExpiredFiles(ctx context.Context, db *gorm.DB, store objectDeleter) (int, error) {
	now := time.Now()
	ageThreshold := now.Add(-time.Duration(maxFileAgeDays()) * 24 * time.Hour)

	var expired []models.File
	err := db.WithContext(ctx).
		Where("blob_deleted = ?", false).
		Where("is_deleted = ? OR expires_at < ? OR current_views >= max_views OR created_at < ?", true, now, ageThreshold).
		Limit(cleanupBatchSize).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, file := range expired {
		_, err := store.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(file.S3Bucket),
			Key:    aws.String(file.S3Key),
		})
		if err != nil {
			// keep the record so the next sweep retries the blob delete
			log.Printf("cleanup: failed to delete s3 object %s: %v", file.S3Key, err)
			continue
		}

		updates := map[string]interface{}{"blob_deleted": true}
		if !file.IsDeleted {
			updates["is_deleted"] = true
			updates["deleted_at"] = &now
			updates["is_active"] = false
		}
		err = db.WithContext(ctx).Model(&models.File{}).
			Where("id = ?", file.ID).
			Updates(updates).Error
		if err != nil {
			log.Printf("cleanup: failed to mark file %s deleted: %v", file.ID, err)
			continue
		}

		if !file.IsDeleted {
			if err := models.ReleaseStorage(db.WithContext(ctx), file.UserID, file.FileSize); err != nil {
				log.Printf("cleanup: failed to credit storage for user %s: %v", file.UserID, err)
			}
		}

		reaped++
	}
	return reaped, nil
}

const expiryReminderWindow = 24 * time.Hour

// NotifyExpiringFiles queues one reminder per live file entering its final
// day, for owners who opted in. Reminded files are flagged either way so the
// sweep never rescans them.
func NotifyExpiringFiles(ctx context.Context, db *gorm.DB) (int, error) {
	now := time.Now()

	var expiring []models.File
	err := db.WithContext(ctx).
		Where("is_deleted = ? AND is_active = ? AND expiry_reminder_sent = ?", false, true, false).
		Where("expires_at > ? AND expires_at <= ?", now, now.Add(expiryReminderWindow)).
		Limit(cleanupBatchSize).
		Find(&expiring).Error
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, file := range expiring {
		var owner models.User
		if err := db.WithContext(ctx).First(&owner, "id = ?", file.UserID).Error; err != nil {
			log.Printf("expiry reminder: owner lookup failed for file %s: %v", file.ID, err)
			continue
		}

		if owner.ExpiryReminders {
			if err := notifications.QueueExpiryReminder(db, &file, &owner); err != nil {
				log.Printf("expiry reminder: queue failed for file %s: %v", file.ID, err)
				continue
			}
			queued++
		}

		err := db.WithContext(ctx).Model(&models.File{}).
			Where("id = ?", file.ID).
			UpdateColumn("expiry_reminder_sent", true).Error
		if err != nil {
			log.Printf("expiry reminder: failed to flag file %s: %v", file.ID, err)
		}
	}
	return queued, nil
}
