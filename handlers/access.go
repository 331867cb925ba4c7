package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaultshare/backend/access"
	"github.com/vaultshare/backend/auth/middleware"
	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/models"
	"github.com/vaultshare/backend/notifications"
)

var (
	accessValidator *access.Validator
	accessServicer  *access.Servicer
	accessLedger    *access.Ledger
	capIssuer       *access.CapabilityIssuer
)

// InitAccessEngine wires the access-control engine against the connected
// database. Must run after initializers.ConnectToDatabase.
func InitAccessEngine() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("❌ JWT_SECRET is not set in environment variables")
	}

	db := initializers.DB
	quotas := access.NewQuotaEnforcer(db)
	sessions := access.NewSessionResolver(db, nil)
	accessLedger = access.NewLedger(db)
	accessValidator = access.NewValidator(db, quotas, sessions, nil)
	capIssuer = access.NewCapabilityIssuer([]byte(secret), 0, nil)
	accessServicer = access.NewServicer(db, accessValidator, sessions, accessLedger, capIssuer)
}

type accessRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
	Password    string `json:"password"`
	Method      string `json:"method"`
}

func identityFromContext(c *gin.Context) access.Identity {
	if userID, ok := c.Get(middleware.UserIDKey); ok {
		return access.Authenticated(userID.(uuid.UUID))
	}
	return access.Anonymous(c.ClientIP())
}

func requestMeta(c *gin.Context) access.RequestMeta {
	return access.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func fileDetail(summary *access.Summary) gin.H {
	f := summary.File
	return gin.H{
		"id":                     f.ID,
		"original_name":          f.OriginalName,
		"file_size":              f.FileSize,
		"content_type":           f.ContentType,
		"expires_at":             f.ExpiresAt,
		"max_views":              f.MaxViews,
		"current_views":          f.CurrentViews,
		"session_duration":       f.SessionDuration,
		"disable_download":       f.DisableDownload,
		"require_signin":         f.RequireSignin,
		"max_views_per_consumer": f.MaxViewsPerConsumer,
		"created_at":             f.CreatedAt,
	}
}

func denialResponse(c *gin.Context, denial *access.Denial) {
	body := gin.H{"granted": false, "reason": denial.Reason}
	if denial.Detail != "" {
		body["detail"] = denial.Detail
	}
	c.JSON(denial.Status(), body)
}

// ValidateAccess checks whether the caller could view the file, without
// consuming a view. The check is advisory: grant re-runs everything.
func ValidateAccess(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access_token is required"})
		return
	}

	identity := identityFromContext(c)
	summary, denial, err := accessValidator.Validate(c.Request.Context(), req.AccessToken, req.Password, identity)
	if err != nil {
		log.Printf("validate failed for token %s: %v", req.AccessToken, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error"})
		return
	}

	if denial != nil {
		logValidateAttempt(c, denial.FileID(), identity, false, denial.LedgerReason())
		denialResponse(c, denial)
		return
	}

	logValidateAttempt(c, summary.File.ID, identity, true, "")

	c.JSON(http.StatusOK, gin.H{
		"granted":                  true,
		"file":                     fileDetail(summary),
		"remaining_views":          summary.RemainingViews,
		"remaining_consumer_views": summary.RemainingConsumerViews,
		"time_remaining":           int64(summary.TimeRemaining.Seconds()),
		"disable_download":         summary.DisableDownload,
		"password_required":        summary.File.PasswordHash != nil,
	})
}

// logValidateAttempt records bare validations in the ledger for audit
// completeness. These rows never influence sessions or consumer quotas.
func logValidateAttempt(c *gin.Context, fileID uuid.UUID, identity access.Identity, granted bool, reason string) {
	if fileID == uuid.Nil {
		return
	}
	err := accessLedger.Append(c.Request.Context(), access.Attempt{
		FileID:   fileID,
		Identity: identity,
		Meta:     requestMeta(c),
		Method:   models.MethodValidate,
		Granted:  granted,
		Reason:   reason,
	})
	if err != nil {
		log.Printf("failed to log validate attempt for file %s: %v", fileID, err)
	}
}

// GrantAccess commits to a view or download: counts it (unless inside an
// active session), logs it and returns a short-lived capability the serve
// endpoint exchanges for bytes.
func GrantAccess(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access_token is required"})
		return
	}

	method := req.Method
	if method == "" {
		method = models.MethodView
	}
	if method != models.MethodView && method != models.MethodDownload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "method must be view or download"})
		return
	}

	identity := identityFromContext(c)
	grant, denial, err := accessServicer.Grant(c.Request.Context(), req.AccessToken, req.Password, identity, method, requestMeta(c))
	if err != nil {
		log.Printf("grant failed for token %s: %v", req.AccessToken, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error"})
		return
	}
	if denial != nil {
		denialResponse(c, denial)
		return
	}

	notifications.QueueAccessNotification(initializers.DB, &grant.File, method, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"capability":   grant.Capability,
		"expires_in":   int64(grant.ExpiresIn.Seconds()),
		"filename":     grant.File.OriginalName,
		"content_type": grant.File.ContentType,
	})
}

// ServeFile streams the bytes for a previously issued capability. All policy
// work already happened at grant time; here only the capability's signature,
// expiry and method are checked before proxying the blob through the backend.
func ServeFile(c *gin.Context) {
	fileID, method, err := capIssuer.Verify(c.Param("capability"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired capability"})
		return
	}

	var file models.File
	if err := initializers.DB.First(&file, "id = ?", fileID).Error; err != nil || file.IsDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	flagSuspiciousAgent(c, &file)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	obj, err := initializers.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(file.S3Bucket),
		Key:    aws.String(file.S3Key),
	})
	if err != nil {
		log.Printf("S3 fetch failed for file %s: %v", file.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient_error"})
		return
	}
	defer obj.Body.Close()

	if method == models.MethodDownload {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	} else {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.OriginalName))
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate, private")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
	}

	size := file.FileSize
	if obj.ContentLength != nil {
		size = *obj.ContentLength
	}
	c.DataFromReader(http.StatusOK, size, file.ContentType, obj.Body, nil)
}

// flagSuspiciousAgent records headless-browser accesses in the ledger. A
// deterrent audit trail only, never a block.
func flagSuspiciousAgent(c *gin.Context, file *models.File) {
	ua := strings.ToLower(c.Request.UserAgent())
	if !strings.Contains(ua, "headless") && !strings.Contains(ua, "phantom") && !strings.Contains(ua, "selenium") {
		return
	}
	log.Printf("potential screenshot attempt on file %s from %s", file.ID, c.ClientIP())
	err := accessLedger.Append(c.Request.Context(), access.Attempt{
		FileID:   file.ID,
		Identity: identityFromContext(c),
		Meta:     requestMeta(c),
		Method:   models.MethodScreenshotAttempt,
		Granted:  false,
		Reason:   "suspicious_user_agent",
	})
	if err != nil {
		log.Printf("failed to log screenshot attempt for file %s: %v", file.ID, err)
	}
}
