package access

import (
	"net/http"

	"github.com/google/uuid"
)

// Reason is the user-facing denial class. Every policy branch has exactly one
// reason so callers can message the consumer without parsing error strings.
type Reason string

const (
	ReasonNotFound               Reason = "not_found"
	ReasonInactive               Reason = "inactive"
	ReasonExpired                Reason = "expired"
	ReasonQuotaExhausted         Reason = "quota_exhausted"
	ReasonPasswordRequired       Reason = "password_required"
	ReasonSignInRequired         Reason = "signin_required"
	ReasonConsumerQuotaExhausted Reason = "consumer_quota_exhausted"
	ReasonDownloadDisabled       Reason = "download_disabled"
)

// Password denial details. Both map to ReasonPasswordRequired; the detail
// tells the caller whether to show the "incorrect" hint.
const (
	PasswordMissing   = "missing"
	PasswordIncorrect = "incorrect"
)

// Denial is an expected policy outcome, distinct from transient storage
// failures which surface as plain errors and are safe to retry.
type Denial struct {
	Reason Reason
	Detail string // only for password_required

	// ledger-facing failure reason, more specific than Reason
	logReason string
	fileID    uuid.UUID // zero when the token resolved to nothing
}

// FileID is the artifact the denial refers to, or uuid.Nil when the access
// token matched no record (in which case there is nothing to log against).
func (d *Denial) FileID() uuid.UUID {
	return d.fileID
}

func (d *Denial) Status() int {
	switch d.Reason {
	case ReasonNotFound:
		return http.StatusNotFound
	case ReasonExpired:
		return http.StatusGone
	case ReasonPasswordRequired, ReasonSignInRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// LedgerReason is the failure_reason value written to the access log. It is
// finer-grained than Reason: a missing and a wrong password are the same
// denial class but distinct audit events.
func (d *Denial) LedgerReason() string {
	if d.logReason != "" {
		return d.logReason
	}
	return string(d.Reason)
}
