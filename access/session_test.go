package access

import (
	"context"
	"testing"
	"time"

	"github.com/vaultshare/backend/models"
)

func TestWithinActiveSessionIgnoresValidateAndDeniedRows(t *testing.T) {
	e := newTestEngine(t)
	file := e.createFile(t)
	identity := Anonymous("203.0.113.7")

	// validate rows and denied rows must never open a session
	mustAppend(t, e, Attempt{FileID: file.ID, Identity: identity, Method: models.MethodValidate, Granted: true})
	mustAppend(t, e, Attempt{FileID: file.ID, Identity: identity, Method: models.MethodView, Granted: false, Reason: "wrong_password"})

	in, err := e.sessions.WithinActiveSession(context.Background(), file, identity)
	if err != nil {
		t.Fatalf("WithinActiveSession: %v", err)
	}
	if in {
		t.Fatalf("validate/denied rows opened a session")
	}

	mustAppend(t, e, Attempt{FileID: file.ID, Identity: identity, Method: models.MethodDownload, Granted: true})

	in, err = e.sessions.WithinActiveSession(context.Background(), file, identity)
	if err != nil {
		t.Fatalf("WithinActiveSession: %v", err)
	}
	if !in {
		t.Fatalf("granted download did not open a session")
	}
}

func TestWithinActiveSessionWindowSlides(t *testing.T) {
	e := newTestEngine(t)
	file := e.createFile(t, func(f *models.File) { f.SessionDuration = 10 })
	identity := Anonymous("203.0.113.7")

	mustAppend(t, e, Attempt{FileID: file.ID, Identity: identity, Method: models.MethodView, Granted: true})

	e.clock.Advance(9 * time.Minute)
	if in, _ := e.sessions.WithinActiveSession(context.Background(), file, identity); !in {
		t.Fatalf("session should still be active at 9m of a 10m window")
	}

	e.clock.Advance(2 * time.Minute)
	if in, _ := e.sessions.WithinActiveSession(context.Background(), file, identity); in {
		t.Fatalf("session should have lapsed at 11m of a 10m window")
	}
}

func TestWithinActiveSessionScopedToIdentityAndFile(t *testing.T) {
	e := newTestEngine(t)
	fileA := e.createFile(t)
	fileB := e.createFile(t)
	alice := Anonymous("203.0.113.7")
	bob := Anonymous("203.0.113.8")

	mustAppend(t, e, Attempt{FileID: fileA.ID, Identity: alice, Method: models.MethodView, Granted: true})

	if in, _ := e.sessions.WithinActiveSession(context.Background(), fileA, bob); in {
		t.Fatalf("session leaked across identities")
	}
	if in, _ := e.sessions.WithinActiveSession(context.Background(), fileB, alice); in {
		t.Fatalf("session leaked across files")
	}
}

func mustAppend(t *testing.T, e *testEngine, a Attempt) {
	t.Helper()
	a.Meta = testMeta()
	if err := e.ledger.Append(context.Background(), a); err != nil {
		t.Fatalf("append ledger row: %v", err)
	}
}
