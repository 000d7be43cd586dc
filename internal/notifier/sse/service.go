// Package sse provides Server-Sent Events support for real-time engine
// notifications: assignments landing on an agent, reclaimed leads, campaign
// hit counters.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType names the SSE event kinds pushed to connected clients.
type EventType string

const (
	EventLeadAssigned   EventType = "lead_assigned"
	EventLeadReclaimed  EventType = "lead_reclaimed"
	EventLeadPending    EventType = "lead_pending"
	EventLeadUpdated    EventType = "lead_updated"
	EventLeadDropped    EventType = "lead_dropped"
	EventCampaignUpdate EventType = "campaign_update"
)

// Event is one SSE payload.
type Event struct {
	Type    EventType `json:"type"`
	LeadID  uuid.UUID `json:"leadId,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// client is one open SSE connection.
type client struct {
	userID   uuid.UUID
	tenantID uuid.UUID
	events   chan Event
}

// Service manages SSE connections and event fan-out. Clients are tracked per
// user and per tenant so events can target one agent or broadcast to
// everyone watching a tenant's dashboards.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client   // userID -> connections
	tenants map[uuid.UUID][]uuid.UUID // tenantID -> userIDs
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		tenants: make(map[uuid.UUID][]uuid.UUID),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = append(s.clients[c.userID], c)
	if c.tenantID != uuid.Nil {
		s.tenants[c.tenantID] = append(s.tenants[c.tenantID], c.userID)
	}
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := s.clients[c.userID]
	found := false
	for i, cl := range conns {
		if cl == c {
			s.clients[c.userID] = append(conns[:i], conns[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		// Already torn down by Close.
		return
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
	if c.tenantID != uuid.Nil {
		users := s.tenants[c.tenantID]
		for i, id := range users {
			if id == c.userID {
				s.tenants[c.tenantID] = append(users[:i], users[i+1:]...)
				break
			}
		}
		if len(s.tenants[c.tenantID]) == 0 {
			delete(s.tenants, c.tenantID)
		}
	}

	close(c.events)
}

// Publish sends an event to every open connection of one user. Slow
// consumers with a full buffer miss the event rather than block the bus.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	conns := s.clients[userID]
	s.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "user_id", userID, "event", event.Type)
		}
	}
}

// PublishToTenant broadcasts an event to every connected user of a tenant.
func (s *Service) PublishToTenant(tenantID uuid.UUID, event Event) {
	s.mu.RLock()
	userIDs := make([]uuid.UUID, len(s.tenants[tenantID]))
	copy(userIDs, s.tenants[tenantID])
	s.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		s.Publish(userID, event)
	}
}

// Handler returns the Gin handler for SSE connections. getIdentity resolves
// the caller; the connection stays open until the client goes away.
func (s *Service) Handler(getIdentity func(*gin.Context) (userID, tenantID uuid.UUID, ok bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, tenantID, ok := getIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID:   userID,
			tenantID: tenantID,
			events:   make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID, "tenantId": tenantID})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case event, open := <-cl.events:
				if !open {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close shuts down every open connection.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conns := range s.clients {
		for _, c := range conns {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
	s.tenants = make(map[uuid.UUID][]uuid.UUID)
}
