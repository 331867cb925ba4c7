package access

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vaultshare/backend/models"
)

func TestConsumerViewCountFiltersRows(t *testing.T) {
	e := newTestEngine(t)
	file := e.createFile(t)
	alice := Authenticated(uuid.New())
	bob := Authenticated(uuid.New())

	mustAppend(t, e, Attempt{FileID: file.ID, Identity: alice, Method: models.MethodView, Granted: true})
	mustAppend(t, e, Attempt{FileID: file.ID, Identity: alice, Method: models.MethodDownload, Granted: true})
	// none of these may count
	mustAppend(t, e, Attempt{FileID: file.ID, Identity: alice, Method: models.MethodValidate, Granted: true})
	mustAppend(t, e, Attempt{FileID: file.ID, Identity: alice, Method: models.MethodView, Granted: false, Reason: "expired"})
	mustAppend(t, e, Attempt{FileID: file.ID, Identity: bob, Method: models.MethodView, Granted: true})

	count, err := e.quotas.ConsumerViewCount(context.Background(), file.ID, alice)
	if err != nil {
		t.Fatalf("ConsumerViewCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 countable views for alice, got %d", count)
	}
}

func TestConsumerExceededLimit(t *testing.T) {
	e := newTestEngine(t)
	unlimited := e.createFile(t) // MaxViewsPerConsumer zero
	limited := e.createFile(t, func(f *models.File) { f.MaxViewsPerConsumer = 1 })
	alice := Authenticated(uuid.New())

	mustAppend(t, e, Attempt{FileID: unlimited.ID, Identity: alice, Method: models.MethodView, Granted: true})
	mustAppend(t, e, Attempt{FileID: limited.ID, Identity: alice, Method: models.MethodView, Granted: true})

	exceeded, err := e.quotas.ConsumerExceededLimit(context.Background(), unlimited, alice)
	if err != nil {
		t.Fatalf("ConsumerExceededLimit: %v", err)
	}
	if exceeded {
		t.Fatalf("zero max_views_per_consumer must mean unlimited")
	}

	exceeded, err = e.quotas.ConsumerExceededLimit(context.Background(), limited, alice)
	if err != nil {
		t.Fatalf("ConsumerExceededLimit: %v", err)
	}
	if !exceeded {
		t.Fatalf("expected limit of 1 to be exhausted")
	}
}

func TestAnonymousQuotaKeyedByIP(t *testing.T) {
	e := newTestEngine(t)
	file := e.createFile(t)

	mustAppend(t, e, Attempt{FileID: file.ID, Identity: Anonymous("203.0.113.7"), Method: models.MethodView, Granted: true})

	count, err := e.quotas.ConsumerViewCount(context.Background(), file.ID, Anonymous("203.0.113.8"))
	if err != nil {
		t.Fatalf("ConsumerViewCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("different IP shares the anonymous quota key")
	}
}
