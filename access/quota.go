package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/models"
)

// QuotaEnforcer answers quota questions. The global count is authoritative on
// the file row itself (the ledger is for audit and derivation, not counting);
// the per-consumer count is a ledger scan bounded by one identity's activity
// on one file.
type QuotaEnforcer struct {
	db *gorm.DB
}

func NewQuotaEnforcer(db *gorm.DB) *QuotaEnforcer {
	return &QuotaEnforcer{db: db}
}

// ConsumerViewCount counts granted view/download entries for the identity.
// Validate-only rows never count toward the limit.
func (q *QuotaEnforcer) ConsumerViewCount(ctx context.Context, fileID uuid.UUID, identity Identity) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&models.AccessLog{}).
		Where("file_id = ? AND identity_kind = ? AND identity_value = ?", fileID, identity.Kind, identity.Value).
		Where("access_granted = ? AND access_method IN ?", true, []string{models.MethodView, models.MethodDownload}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count consumer views: %w", err)
	}
	return count, nil
}

func (q *QuotaEnforcer) ConsumerExceededLimit(ctx context.Context, file *models.File, identity Identity) (bool, error) {
	if file.MaxViewsPerConsumer == 0 {
		return false, nil
	}
	count, err := q.ConsumerViewCount(ctx, file.ID, identity)
	if err != nil {
		return false, err
	}
	return count >= int64(file.MaxViewsPerConsumer), nil
}
