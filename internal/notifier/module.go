// Package notifier pushes engine events to connected clients over
// Server-Sent Events. It subscribes to the domain bus and inverts the
// dependency: the scheduler, call, and campaign modules publish events
// without knowing who is listening.
package notifier

import (
	"context"

	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/notifier/sse"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Module struct {
	sse *sse.Service
	log *logger.Logger
}

func New(log *logger.Logger) *Module {
	return &Module{
		sse: sse.New(log),
		log: log,
	}
}

func (m *Module) Name() string { return "notifier" }

// SSE exposes the underlying connection registry, mainly for tests.
func (m *Module) SSE() *sse.Service { return m.sse }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", m.sse.Handler(func(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
		identity := httpkit.MustGetIdentity(c)
		if identity == nil {
			return uuid.Nil, uuid.Nil, false
		}
		return identity.UserID(), identity.TenantID(), true
	}))
}

// RegisterHandlers subscribes the notifier to every engine event it relays.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.LeadReclaimed{}.EventName(), m)
	bus.Subscribe(events.LeadPendingAssignment{}.EventName(), m)
	bus.Subscribe(events.CallRecorded{}.EventName(), m)
	bus.Subscribe(events.LeadDropped{}.EventName(), m)
	bus.Subscribe(events.CampaignHit{}.EventName(), m)
	bus.Subscribe(events.CampaignStatusChanged{}.EventName(), m)
}

// Handle relays one domain event to the connected clients it concerns.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		m.sse.Publish(e.NewAgent, sse.Event{
			Type:    sse.EventLeadAssigned,
			LeadID:  e.LeadID,
			Message: "a lead was assigned to you",
			Data:    e,
		})
		if e.PreviousAgent != nil {
			m.sse.Publish(*e.PreviousAgent, sse.Event{
				Type:   sse.EventLeadUpdated,
				LeadID: e.LeadID,
				Data:   e,
			})
		}
	case events.LeadReclaimed:
		m.sse.Publish(e.PreviousAgent, sse.Event{
			Type:    sse.EventLeadReclaimed,
			LeadID:  e.LeadID,
			Message: "a lead was returned to the pool",
			Data:    e,
		})
	case events.LeadPendingAssignment:
		m.sse.PublishToTenant(e.TenantID, sse.Event{
			Type:    sse.EventLeadPending,
			LeadID:  e.LeadID,
			Message: e.Reason,
			Data:    e,
		})
	case events.CallRecorded:
		m.sse.PublishToTenant(e.TenantID, sse.Event{
			Type:   sse.EventLeadUpdated,
			LeadID: e.LeadID,
			Data:   e,
		})
	case events.LeadDropped:
		m.sse.PublishToTenant(e.TenantID, sse.Event{
			Type:    sse.EventLeadDropped,
			LeadID:  e.LeadID,
			Message: e.Reason,
			Data:    e,
		})
	case events.CampaignHit:
		m.sse.PublishToTenant(e.TenantID, sse.Event{
			Type: sse.EventCampaignUpdate,
			Data: e,
		})
	case events.CampaignStatusChanged:
		m.sse.PublishToTenant(e.TenantID, sse.Event{
			Type: sse.EventCampaignUpdate,
			Data: e,
		})
	}
	return nil
}

// Close tears down every open SSE connection.
func (m *Module) Close() {
	m.sse.Close()
}
