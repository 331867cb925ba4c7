package access

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vaultshare/backend/models"
)

func TestCapabilityRoundTrip(t *testing.T) {
	clock := newFakeClock()
	caps := NewCapabilityIssuer([]byte("test-secret"), 0, clock.Now)
	fileID := uuid.New()

	token, err := caps.Issue(fileID, models.MethodDownload)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	gotID, gotMethod, err := caps.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if gotID != fileID || gotMethod != models.MethodDownload {
		t.Fatalf("capability carried %s/%s, want %s/%s", gotID, gotMethod, fileID, models.MethodDownload)
	}
}

func TestCapabilityExpires(t *testing.T) {
	clock := newFakeClock()
	caps := NewCapabilityIssuer([]byte("test-secret"), 10*time.Minute, clock.Now)

	token, err := caps.Issue(uuid.New(), models.MethodView)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.Advance(11 * time.Minute)
	if _, _, err := caps.Verify(token); err == nil {
		t.Fatalf("expected expired capability to be rejected")
	}
}

func TestCapabilityRejectsForeignSignature(t *testing.T) {
	clock := newFakeClock()
	issuer := NewCapabilityIssuer([]byte("secret-a"), 0, clock.Now)
	verifier := NewCapabilityIssuer([]byte("secret-b"), 0, clock.Now)

	token, err := issuer.Issue(uuid.New(), models.MethodView)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected signature mismatch to be rejected")
	}
}

func TestCapabilityRejectsOtherTokenTypes(t *testing.T) {
	// An auth token signed with the same secret is not a capability.
	clock := newFakeClock()
	caps := NewCapabilityIssuer([]byte("test-secret"), 0, clock.Now)

	if _, _, err := caps.Verify("not-a-jwt"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
