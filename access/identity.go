package access

import (
	"github.com/google/uuid"

	"github.com/vaultshare/backend/models"
)

// Identity is the accessing party: either an authenticated consumer (stable
// across devices) or an anonymous caller keyed by client IP. It is the single
// grouping key for session and per-consumer quota derivations.
type Identity struct {
	Kind  string // models.IdentityConsumer or models.IdentityIP
	Value string
}

func Authenticated(userID uuid.UUID) Identity {
	return Identity{Kind: models.IdentityConsumer, Value: userID.String()}
}

func Anonymous(ip string) Identity {
	return Identity{Kind: models.IdentityIP, Value: ip}
}

func (i Identity) IsAnonymous() bool {
	return i.Kind != models.IdentityConsumer
}
