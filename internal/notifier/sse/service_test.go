package sse

import (
	"testing"

	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestClient(userID, tenantID uuid.UUID) *client {
	return &client{
		userID:   userID,
		tenantID: tenantID,
		events:   make(chan Event, 4),
	}
}

func TestPublishReachesAllUserConnections(t *testing.T) {
	svc := New(logger.New("development"))
	userID := uuid.New()
	tenantID := uuid.New()

	first := newTestClient(userID, tenantID)
	second := newTestClient(userID, tenantID)
	svc.addClient(first)
	svc.addClient(second)

	svc.Publish(userID, Event{Type: EventLeadAssigned})

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("expected both connections to receive the event, got %d and %d", len(first.events), len(second.events))
	}
}

func TestPublishToTenantDeduplicatesUsers(t *testing.T) {
	svc := New(logger.New("development"))
	tenantID := uuid.New()
	userID := uuid.New()
	otherTenant := uuid.New()

	member := newTestClient(userID, tenantID)
	outsider := newTestClient(uuid.New(), otherTenant)
	svc.addClient(member)
	svc.addClient(outsider)

	svc.PublishToTenant(tenantID, Event{Type: EventCampaignUpdate})

	if len(member.events) != 1 {
		t.Fatalf("expected tenant member to receive the event, got %d", len(member.events))
	}
	if len(outsider.events) != 0 {
		t.Fatalf("expected other tenant's client to receive nothing, got %d", len(outsider.events))
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	svc := New(logger.New("development"))
	userID := uuid.New()

	cl := &client{userID: userID, events: make(chan Event, 1)}
	svc.addClient(cl)

	svc.Publish(userID, Event{Type: EventLeadAssigned})
	svc.Publish(userID, Event{Type: EventLeadAssigned}) // buffer full, must not block

	if len(cl.events) != 1 {
		t.Fatalf("expected exactly one buffered event, got %d", len(cl.events))
	}
}

func TestRemoveAfterCloseDoesNotPanic(t *testing.T) {
	svc := New(logger.New("development"))
	cl := newTestClient(uuid.New(), uuid.New())
	svc.addClient(cl)

	svc.Close()
	svc.removeClient(cl)

	svc.Publish(cl.userID, Event{Type: EventLeadAssigned})
}
