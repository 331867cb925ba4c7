package access

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vaultshare/backend/models"
)

// SessionResolver decides whether an identity is inside an active session for
// a file. A session is purely derived: one granted view/download ledger entry
// newer than now minus the file's session window. There is no session table
// to expire or drift out of sync with the log.
type SessionResolver struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionResolver(db *gorm.DB, now func() time.Time) *SessionResolver {
	if now == nil {
		now = time.Now
	}
	return &SessionResolver{db: db, now: now}
}

func (s *SessionResolver) WithinActiveSession(ctx context.Context, file *models.File, identity Identity) (bool, error) {
	cutoff := s.now().Add(-file.SessionWindow())

	var count int64
	err := s.db.WithContext(ctx).Model(&models.AccessLog{}).
		Where("file_id = ? AND identity_kind = ? AND identity_value = ?", file.ID, identity.Kind, identity.Value).
		Where("access_granted = ? AND access_method IN ?", true, []string{models.MethodView, models.MethodDownload}).
		Where("created_at >= ?", cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query active session: %w", err)
	}
	return count > 0, nil
}
