package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/models"
)

// Summary is the read-only result of a successful validation. It carries
// everything a viewer needs to render the access page without the caller
// having committed to a counted view.
type Summary struct {
	File                   models.File
	RemainingViews         int
	RemainingConsumerViews int // -1 when unlimited
	TimeRemaining          time.Duration
	DisableDownload        bool
}

// Validator runs the policy pipeline for one access attempt. It never writes:
// counters move only in Servicer, and ledger rows are appended by whoever
// invoked the validation.
type Validator struct {
	db       *gorm.DB
	quotas   *QuotaEnforcer
	sessions *SessionResolver
	now      func() time.Time
}

func NewValidator(db *gorm.DB, quotas *QuotaEnforcer, sessions *SessionResolver, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{db: db, quotas: quotas, sessions: sessions, now: now}
}

// Validate checks the access policy in fixed order, first failure wins:
// existence, active flag, expiry, global quota (waived inside an active
// session), password, sign-in requirement, per-consumer quota. The order is a
// contract; tests pin it.
func (v *Validator) Validate(ctx context.Context, token, password string, identity Identity) (*Summary, *Denial, error) {
	var file models.File
	err := v.db.WithContext(ctx).Where("access_token = ?", token).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Denial{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup by access token: %w", err)
	}

	// The conditional increment is the only writer of current_views and never
	// goes past max_views. Seeing it exceeded means that contract was broken
	// somewhere; clamping it silently would hide a corrupted counter.
	if file.CurrentViews > file.MaxViews {
		panic(fmt.Sprintf("file %s: current_views %d exceeds max_views %d", file.ID, file.CurrentViews, file.MaxViews))
	}

	if file.IsDeleted {
		return nil, &Denial{Reason: ReasonNotFound, logReason: "deleted", fileID: file.ID}, nil
	}
	if !file.IsActive {
		return nil, &Denial{Reason: ReasonInactive, fileID: file.ID}, nil
	}
	if file.IsExpired(v.now()) {
		return nil, &Denial{Reason: ReasonExpired, fileID: file.ID}, nil
	}
	if file.ViewLimitReached() {
		// An identity inside an active session holds a slot that was already
		// counted; it may keep re-viewing until the window lapses.
		inSession, err := v.sessions.WithinActiveSession(ctx, &file, identity)
		if err != nil {
			return nil, nil, err
		}
		if !inSession {
			return nil, &Denial{Reason: ReasonQuotaExhausted, logReason: "view_limit", fileID: file.ID}, nil
		}
	}

	if file.PasswordHash != nil && *file.PasswordHash != "" {
		if password == "" {
			return nil, &Denial{Reason: ReasonPasswordRequired, Detail: PasswordMissing, logReason: "password_missing", fileID: file.ID}, nil
		}
		if bcrypt.CompareHashAndPassword([]byte(*file.PasswordHash), []byte(password)) != nil {
			return nil, &Denial{Reason: ReasonPasswordRequired, Detail: PasswordIncorrect, logReason: "wrong_password", fileID: file.ID}, nil
		}
	}

	if file.RequireSignin && identity.IsAnonymous() {
		return nil, &Denial{Reason: ReasonSignInRequired, fileID: file.ID}, nil
	}

	remainingConsumer := -1
	if file.MaxViewsPerConsumer > 0 {
		count, err := v.quotas.ConsumerViewCount(ctx, file.ID, identity)
		if err != nil {
			return nil, nil, fmt.Errorf("consumer view count: %w", err)
		}
		if count >= int64(file.MaxViewsPerConsumer) {
			return nil, &Denial{Reason: ReasonConsumerQuotaExhausted, logReason: "consumer_limit_exceeded", fileID: file.ID}, nil
		}
		remainingConsumer = file.MaxViewsPerConsumer - int(count)
	}

	return &Summary{
		File:                   file,
		RemainingViews:         file.ViewsRemaining(),
		RemainingConsumerViews: remainingConsumer,
		TimeRemaining:          file.TimeRemaining(v.now()),
		DisableDownload:        file.DisableDownload,
	}, nil, nil
}
