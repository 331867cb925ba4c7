package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/models"
)

// RequestMeta is opaque per-request audit context passed through to the
// ledger; the engine never interprets it.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Attempt is one ledger row to be appended.
type Attempt struct {
	FileID   uuid.UUID
	Identity Identity
	Meta     RequestMeta
	Method   string
	Granted  bool
	Reason   string // empty when granted
}

// Ledger appends access attempts. Append-only: no update or delete path
// exists here, the store's insert guarantee is the only synchronization.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Append(ctx context.Context, a Attempt) error {
	entry := models.AccessLog{
		FileID:        a.FileID,
		IdentityKind:  a.Identity.Kind,
		IdentityValue: a.Identity.Value,
		IPAddress:     a.Meta.IPAddress,
		UserAgent:     a.Meta.UserAgent,
		AccessGranted: a.Granted,
		AccessMethod:  a.Method,
		FailureReason: a.Reason,
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

// SessionGrouped returns the file's granted view/download history collapsed
// to one row per session: entries by the same identity closer together than
// the window are folded into the first. Owners see "who opened this" without
// a refresh storm of duplicates.
func (l *Ledger) SessionGrouped(ctx context.Context, fileID uuid.UUID, window time.Duration) ([]models.AccessLog, error) {
	var logs []models.AccessLog
	err := l.db.WithContext(ctx).
		Where("file_id = ? AND access_granted = ? AND access_method IN ?", fileID, true, []string{models.MethodView, models.MethodDownload}).
		Order("created_at asc").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("load access logs: %w", err)
	}

	lastSeen := make(map[Identity]time.Time)
	var grouped []models.AccessLog
	for _, entry := range logs {
		id := Identity{Kind: entry.IdentityKind, Value: entry.IdentityValue}
		if prev, ok := lastSeen[id]; !ok || entry.CreatedAt.Sub(prev) > window {
			grouped = append(grouped, entry)
		}
		lastSeen[id] = entry.CreatedAt
	}

	// newest first, like the raw log endpoint used to return
	for i, j := 0, len(grouped)-1; i < j; i, j = i+1, j-1 {
		grouped[i], grouped[j] = grouped[j], grouped[i]
	}
	return grouped, nil
}
