package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vaultshare/backend/models"
)

type fakeDeleter struct {
	deleted []string
	fail    map[string]bool
}

func (f *fakeDeleter) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.fail[*params.Key] {
		return nil, errors.New("simulated s3 failure")
	}
	f.deleted = append(f.deleted, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.File{}, &models.EmailNotification{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedFile(t *testing.T, db *gorm.DB, owner uuid.UUID, key string, mutate func(*models.File)) *models.File {
	t.Helper()
	expiresAt := time.Now().Add(24 * time.Hour)
	file := models.File{
		ID:          uuid.New(),
		UserID:      owner,
		S3Key:       key,
		S3Bucket:    "test-bucket",
		AccessToken: uuid.NewString(),
		FileSize:    100,
		ExpiresAt:   &expiresAt,
		MaxViews:    10,
		IsActive:    true,
	}
	if mutate != nil {
		mutate(&file)
	}
	if err := db.Create(&file).Error; err != nil {
		t.Fatalf("seed file: %v", err)
	}
	return &file
}

func TestCleanupReapsQualifyingFiles(t *testing.T) {
	db := newTestDB(t)
	owner := uuid.New()
	if err := db.Create(&models.User{ID: owner, Email: "owner@example.com", StorageUsed: 300}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	expired := seedFile(t, db, owner, "k/expired", func(f *models.File) { f.ExpiresAt = &past })
	exhausted := seedFile(t, db, owner, "k/exhausted", func(f *models.File) { f.CurrentViews = f.MaxViews })
	fresh := seedFile(t, db, owner, "k/fresh", nil)

	store := &fakeDeleter{}
	reaped, err := CleanupExpiredFiles(context.Background(), db, store)
	if err != nil {
		t.Fatalf("CleanupExpiredFiles: %v", err)
	}
	if reaped != 2 {
		t.Fatalf("expected 2 reaped files, got %d", reaped)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected 2 blob deletions, got %v", store.deleted)
	}

	for _, id := range []uuid.UUID{expired.ID, exhausted.ID} {
		var f models.File
		if err := db.First(&f, "id = ?", id).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if !f.IsDeleted || f.IsActive {
			t.Fatalf("file %s not marked deleted", id)
		}
	}

	var f models.File
	if err := db.First(&f, "id = ?", fresh.ID).Error; err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if f.IsDeleted {
		t.Fatalf("fresh file was reaped")
	}

	var u models.User
	if err := db.First(&u, "id = ?", owner).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if u.StorageUsed != 100 {
		t.Fatalf("expected storage credit down to 100, got %d", u.StorageUsed)
	}
}

func TestCleanupReapsOwnerDeletedBlobs(t *testing.T) {
	db := newTestDB(t)
	owner := uuid.New()
	// the owner's delete already credited the quota
	if err := db.Create(&models.User{ID: owner, Email: "owner@example.com", StorageUsed: 0}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	deletedAt := time.Now().Add(-time.Hour)
	gone := seedFile(t, db, owner, "k/owner-deleted", func(f *models.File) {
		f.IsDeleted = true
		f.DeletedAt = &deletedAt
		f.IsActive = false
	})

	store := &fakeDeleter{}
	reaped, err := CleanupExpiredFiles(context.Background(), db, store)
	if err != nil {
		t.Fatalf("CleanupExpiredFiles: %v", err)
	}
	if reaped != 1 || len(store.deleted) != 1 || store.deleted[0] != "k/owner-deleted" {
		t.Fatalf("expected the orphaned blob to be removed, reaped=%d deleted=%v", reaped, store.deleted)
	}

	// the quota credit must not be applied a second time
	var u models.User
	if err := db.First(&u, "id = ?", owner).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if u.StorageUsed != 0 {
		t.Fatalf("owner-deleted reap moved storage_used to %d", u.StorageUsed)
	}

	var f models.File
	if err := db.First(&f, "id = ?", gone.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !f.BlobDeleted {
		t.Fatalf("blob removal not recorded")
	}

	// the next sweep has nothing left to do
	reaped, err = CleanupExpiredFiles(context.Background(), db, store)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if reaped != 0 || len(store.deleted) != 1 {
		t.Fatalf("blob deleted again on the second sweep: reaped=%d deleted=%v", reaped, store.deleted)
	}
}

func TestExpiryRemindersQueueOncePerFile(t *testing.T) {
	db := newTestDB(t)
	optedIn := uuid.New()
	optedOut := uuid.New()
	if err := db.Create(&models.User{ID: optedIn, Email: "in@example.com"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := db.Create(&models.User{ID: optedOut, Email: "out@example.com"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := db.Model(&models.User{}).Where("id = ?", optedOut).Update("expiry_reminders", false).Error; err != nil {
		t.Fatalf("opt out: %v", err)
	}

	soon := time.Now().Add(12 * time.Hour)
	later := time.Now().Add(48 * time.Hour)
	expiring := seedFile(t, db, optedIn, "k/expiring", func(f *models.File) { f.ExpiresAt = &soon })
	seedFile(t, db, optedIn, "k/not-yet", func(f *models.File) { f.ExpiresAt = &later })
	seedFile(t, db, optedOut, "k/muted", func(f *models.File) { f.ExpiresAt = &soon })

	queued, err := NotifyExpiringFiles(context.Background(), db)
	if err != nil {
		t.Fatalf("NotifyExpiringFiles: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected 1 reminder, queued %d", queued)
	}

	var n models.EmailNotification
	if err := db.First(&n, "template_name = ?", "file_expiring").Error; err != nil {
		t.Fatalf("load reminder: %v", err)
	}
	if n.Recipient != "in@example.com" {
		t.Fatalf("reminder addressed to %s", n.Recipient)
	}

	var f models.File
	if err := db.First(&f, "id = ?", expiring.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !f.ExpiryReminderSent {
		t.Fatalf("reminded file not flagged")
	}

	// a second sweep queues nothing new
	queued, err = NotifyExpiringFiles(context.Background(), db)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if queued != 0 {
		t.Fatalf("reminder queued twice")
	}
	var count int64
	db.Model(&models.EmailNotification{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 outbox row, got %d", count)
	}
}

func TestCleanupKeepsRecordWhenBlobDeleteFails(t *testing.T) {
	db := newTestDB(t)
	owner := uuid.New()
	if err := db.Create(&models.User{ID: owner, Email: "owner@example.com"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	stuck := seedFile(t, db, owner, "k/stuck", func(f *models.File) { f.ExpiresAt = &past })

	store := &fakeDeleter{fail: map[string]bool{"k/stuck": true}}
	reaped, err := CleanupExpiredFiles(context.Background(), db, store)
	if err != nil {
		t.Fatalf("CleanupExpiredFiles: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("expected 0 reaped, got %d", reaped)
	}

	// record survives so the next sweep retries the blob
	var f models.File
	if err := db.First(&f, "id = ?", stuck.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if f.IsDeleted {
		t.Fatalf("record marked deleted despite blob delete failure")
	}
}
