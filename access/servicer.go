package access

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/models"
)

// Grant is a successful serve/download authorization. CountedView reports
// whether this grant consumed a view slot or rode an active session.
type Grant struct {
	File        models.File
	Capability  string
	ExpiresIn   time.Duration
	CountedView bool
}

// Servicer is the only component allowed to move view counters. It re-runs
// the full validation on every grant (a prior validate call proves nothing:
// time and quotas move), dedupes against the active session, performs the
// conditional atomic increment and appends the ledger entry.
type Servicer struct {
	db        *gorm.DB
	validator *Validator
	sessions  *SessionResolver
	ledger    *Ledger
	caps      *CapabilityIssuer
}

func NewServicer(db *gorm.DB, validator *Validator, sessions *SessionResolver, ledger *Ledger, caps *CapabilityIssuer) *Servicer {
	return &Servicer{db: db, validator: validator, sessions: sessions, ledger: ledger, caps: caps}
}

// Grant authorizes one view or download. Outcomes:
//   - (*Grant, nil, nil): granted, capability issued, attempt logged.
//   - (nil, *Denial, nil): policy denial, denied attempt logged.
//   - (nil, nil, error): transient storage failure, outcome unknown; the
//     caller may retry the whole call but must never assume a denial.
func (s *Servicer) Grant(ctx context.Context, token, password string, identity Identity, method string, meta RequestMeta) (*Grant, *Denial, error) {
	if method != models.MethodView && method != models.MethodDownload {
		return nil, nil, fmt.Errorf("unsupported access method %q", method)
	}

	summary, denial, err := s.validator.Validate(ctx, token, password, identity)
	if err != nil {
		return nil, nil, err
	}
	if denial != nil {
		s.logDenial(ctx, denial, identity, method, meta)
		return nil, denial, nil
	}
	file := summary.File

	if method == models.MethodDownload && file.DisableDownload {
		denial := &Denial{Reason: ReasonDownloadDisabled, fileID: file.ID}
		s.logDenial(ctx, denial, identity, method, meta)
		return nil, denial, nil
	}

	inSession, err := s.sessions.WithinActiveSession(ctx, &file, identity)
	if err != nil {
		return nil, nil, err
	}

	counted := false
	if !inSession {
		// Conditional single-statement increment: concurrent grants racing
		// for the last slot serialize here, the loser's RowsAffected is 0.
		res := s.db.WithContext(ctx).Model(&models.File{}).
			Where("id = ? AND current_views < max_views", file.ID).
			UpdateColumn("current_views", gorm.Expr("current_views + ?", 1))
		if res.Error != nil {
			return nil, nil, fmt.Errorf("increment view counter: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Quota consumed between validation and increment. Expected under
			// contention; indistinguishable from the policy denial on purpose.
			denial := &Denial{Reason: ReasonQuotaExhausted, logReason: "view_limit", fileID: file.ID}
			s.logDenial(ctx, denial, identity, method, meta)
			return nil, denial, nil
		}
		file.CurrentViews++
		counted = true
	}

	err = s.ledger.Append(ctx, Attempt{
		FileID:   file.ID,
		Identity: identity,
		Meta:     meta,
		Method:   method,
		Granted:  true,
	})
	if err != nil {
		// The increment may have landed without its ledger entry. Accepted as
		// reconcilable audit noise rather than rolled back; surface the fault
		// so the caller retries from the top.
		log.Printf("access log append failed after grant for file %s: %v", file.ID, err)
		return nil, nil, err
	}

	capability, err := s.caps.Issue(file.ID, method)
	if err != nil {
		return nil, nil, err
	}

	return &Grant{
		File:        file,
		Capability:  capability,
		ExpiresIn:   s.caps.TTL(),
		CountedView: counted,
	}, nil, nil
}

// logDenial appends a denied attempt. Best effort: a ledger fault must not
// turn a definite policy denial into an ambiguous transient error.
func (s *Servicer) logDenial(ctx context.Context, denial *Denial, identity Identity, method string, meta RequestMeta) {
	if denial.fileID == uuid.Nil {
		return // unknown token, nothing to log against
	}
	err := s.ledger.Append(ctx, Attempt{
		FileID:   denial.fileID,
		Identity: identity,
		Meta:     meta,
		Method:   method,
		Granted:  false,
		Reason:   denial.LedgerReason(),
	})
	if err != nil {
		log.Printf("access log append failed for denied attempt on file %s: %v", denial.fileID, err)
	}
}
