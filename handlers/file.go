package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/models"
	"github.com/vaultshare/backend/notifications"
)

const defaultMaxExpiryHours = 168 // 7 days

func maxExpiryHours() int {
	if v, err := strconv.Atoi(os.Getenv("MAX_EXPIRY_HOURS")); err == nil && v > 0 {
		return v
	}
	return defaultMaxExpiryHours
}

func formInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.PostForm(key)); err == nil {
		return v
	}
	return fallback
}

func formBool(c *gin.Context, key string) bool {
	return c.PostForm(key) == "true"
}

// UploadFile stores the blob in S3 and creates the artifact record with its
// access policy. The access token in the response is the only way to reach
// the file.
func UploadFile(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	expiryHours := formInt(c, "expiry_hours", 24)
	if expiryHours < 1 || expiryHours > maxExpiryHours() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("expiry_hours must be between 1 and %d", maxExpiryHours())})
		return
	}
	maxViews := formInt(c, "max_views", 10)
	if maxViews < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_views must be at least 1"})
		return
	}

	var passwordHash *string
	if password := c.PostForm("password"); password != "" {
		hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		hash := string(hashBytes)
		passwordHash = &hash
	}

	// claim the quota up front; concurrent uploads race on the conditional
	// update instead of a read-then-write check
	reserved, err := models.ReserveStorage(initializers.DB, userID, fileHeader.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check storage quota"})
		return
	}
	if !reserved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient storage quota"})
		return
	}
	releaseQuota := func() {
		if err := models.ReleaseStorage(initializers.DB, userID, fileHeader.Size); err != nil {
			log.Printf("failed to release storage claim for user %s: %v", userID, err)
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		releaseQuota()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s3Key := fmt.Sprintf("uploads/%s/%s%s", userID, uuid.New(), filepath.Ext(fileHeader.Filename))

	// hash while streaming to S3, no second pass over the bytes
	hasher := sha256.New()
	uploader := manager.NewUploader(initializers.S3Client)
	_, err = uploader.Upload(c.Request.Context(), &s3.PutObjectInput{
		Bucket:      aws.String(initializers.S3Bucket),
		Key:         aws.String(s3Key),
		Body:        io.TeeReader(src, hasher),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		releaseQuota()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	expiresAt := time.Now().Add(time.Duration(expiryHours) * time.Hour)
	newFile := models.File{
		ID:                  uuid.New(),
		UserID:              userID,
		OriginalName:        fileHeader.Filename,
		FileSize:            fileHeader.Size,
		FileHash:            hex.EncodeToString(hasher.Sum(nil)),
		ContentType:         contentType,
		S3Key:               s3Key,
		S3Bucket:            initializers.S3Bucket,
		AccessToken:         shortuuid.New(),
		PasswordHash:        passwordHash,
		ExpiryHours:         expiryHours,
		ExpiresAt:           &expiresAt,
		MaxViews:            maxViews,
		SessionDuration:     formInt(c, "session_duration", 15),
		RequireSignin:       formBool(c, "require_signin"),
		MaxViewsPerConsumer: formInt(c, "max_views_per_consumer", 0),
		DisableDownload:     formBool(c, "disable_download"),
		IsActive:            true,
	}

	if err := initializers.DB.Create(&newFile).Error; err != nil {
		releaseQuota()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB save failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"file": newFile, "access_url": newFile.AccessURL()})
}

func ListFiles(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var files []models.File
	err := initializers.DB.
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at desc").
		Find(&files).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// ownedFile loads a non-deleted file and verifies the caller owns it.
func ownedFile(c *gin.Context) (*models.File, bool) {
	userID := c.MustGet("userID").(uuid.UUID)

	var file models.File
	err := initializers.DB.
		First(&file, "id = ? AND user_id = ? AND is_deleted = ?", c.Param("id"), userID, false).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return nil, false
	}
	return &file, true
}

// FileLogs returns the file's access history, one row per session so a
// refresh storm or a view-then-download shows up once.
func FileLogs(c *gin.Context) {
	file, ok := ownedFile(c)
	if !ok {
		return
	}

	logs, err := accessLedger.SessionGrouped(c.Request.Context(), file.ID, file.SessionWindow())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch access logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// DeactivateFile turns the share off without deleting anything; access
// attempts start failing with the inactive denial.
func DeactivateFile(c *gin.Context) {
	file, ok := ownedFile(c)
	if !ok {
		return
	}

	if err := initializers.DB.Model(file).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Deactivate failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteFile soft-deletes the record and credits the owner's storage quota.
// The blob itself is reaped by the cleanup job.
func DeleteFile(c *gin.Context) {
	file, ok := ownedFile(c)
	if !ok {
		return
	}

	now := time.Now()
	err := initializers.DB.Model(file).Updates(map[string]interface{}{
		"is_deleted": true,
		"deleted_at": &now,
		"is_active":  false,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delete failed"})
		return
	}

	if err := models.ReleaseStorage(initializers.DB, file.UserID, file.FileSize); err != nil {
		log.Printf("failed to credit storage for user %s: %v", file.UserID, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ShareFile records how the owner handed out the link and queues the email
// notification for email shares.
func ShareFile(c *gin.Context) {
	file, ok := ownedFile(c)
	if !ok {
		return
	}

	var body struct {
		ShareMethod    string `json:"share_method"`
		RecipientEmail string `json:"recipient_email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if body.ShareMethod == "" {
		body.ShareMethod = models.ShareMethodLink
	}
	if body.ShareMethod != models.ShareMethodLink && body.ShareMethod != models.ShareMethodEmail && body.ShareMethod != models.ShareMethodQR {
		c.JSON(http.StatusBadRequest, gin.H{"error": "share_method must be link, email or qr"})
		return
	}
	if body.ShareMethod == models.ShareMethodEmail && body.RecipientEmail == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_email is required for email sharing"})
		return
	}

	share := models.FileShare{
		FileID:         file.ID,
		SharedBy:       file.UserID,
		ShareMethod:    body.ShareMethod,
		RecipientEmail: body.RecipientEmail,
	}

	if body.ShareMethod == models.ShareMethodEmail {
		if err := notifications.QueueShareNotification(initializers.DB, file, body.RecipientEmail); err == nil {
			now := time.Now()
			share.IsNotified = true
			share.NotifiedAt = &now
		}
	}

	if err := initializers.DB.Create(&share).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Share failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"share": share, "access_url": file.AccessURL()})
}

// FileQR renders the access URL as a QR code PNG.
func FileQR(c *gin.Context) {
	file, ok := ownedFile(c)
	if !ok {
		return
	}

	png, err := qrcode.Encode(file.AccessURL(), qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "QR generation failed"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
