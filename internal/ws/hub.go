// Package ws streams committed change sets to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/metrics"
	"github.com/persistorai/changelog/internal/models"
)

// Hub channel buffer sizes and connection limits.
const (
	broadcastBuffer = 256
	registerBuffer  = 64

	maxClients             = 1000
	maxClientsPerPrincipal = 50
)

// broadcast is sent through the broadcast channel to the Run goroutine.
type broadcast struct {
	event *Event
	msg   []byte
}

// Hub manages active WebSocket clients and broadcasts change set events.
// All client map mutations happen exclusively in the Run goroutine.
type Hub struct {
	clients        map[*Client]bool
	principalCount map[string]int
	register       chan *Client
	unregister     chan *Client
	broadcast      chan broadcast
	shutdown       chan struct{} // signals Run to begin graceful drain
	done           chan struct{} // closed when Run has finished draining
	count          atomic.Int64
	log            *logrus.Logger
	seq            atomic.Uint64
	buffer         *EventBuffer
}

// NewHub creates a new Hub instance.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		principalCount: make(map[string]int),
		register:       make(chan *Client, registerBuffer),
		unregister:     make(chan *Client, registerBuffer),
		broadcast:      make(chan broadcast, broadcastBuffer),
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
		log:            log,
		buffer:         NewEventBuffer(defaultBufferMaxLen, defaultBufferMaxAge),
	}
}

// drainTimeout is how long the hub waits for clients to flush after shutdown.
const drainTimeout = 3 * time.Second

// Run starts the hub event loop. It should be run as a goroutine.
// It exits when Shutdown is called or the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.drainClients()

			return
		case <-h.shutdown:
			h.drainClients()

			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.removeClient(client)
			}
			h.log.WithField("total", len(h.clients)).Debug("feed.unregistered")

		case b := <-h.broadcast:
			for client := range h.clients {
				if !b.event.touchesAny(client.typeFilter()) {
					continue
				}
				if !client.trySend(b.msg) {
					h.log.WithField("principal", client.Principal).Warn("feed client too slow, dropping")
					h.removeClient(client)
				}
			}
		}
	}
}

func (h *Hub) addClient(client *Client) {
	if len(h.clients) >= maxClients {
		h.log.Warn("global connection limit reached, dropping client")
		client.closeSend()
		return
	}
	if h.principalCount[client.Principal] >= maxClientsPerPrincipal {
		h.log.WithField("principal", client.Principal).Warn("per-principal connection limit reached, dropping client")
		client.closeSend()
		return
	}

	h.clients[client] = true
	h.principalCount[client.Principal]++
	h.setCount()
	h.log.WithField("total", len(h.clients)).Debug("feed.registered")
}

func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	client.closeSend()

	h.principalCount[client.Principal]--
	if h.principalCount[client.Principal] <= 0 {
		delete(h.principalCount, client.Principal)
	}
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.FeedConnections.Set(float64(len(h.clients)))
}

// maxBroadcastPayload bounds one event frame. Larger change sets are sent
// without their object list.
const maxBroadcastPayload = 64 << 10

// Publish assigns the change set an event ID, buffers it for replay and
// queues it for every subscriber whose type filter it matches. It never
// blocks the caller.
func (h *Hub) Publish(cs *models.ChangeSet) {
	sum, types := summarize(cs)

	evt, msg, err := h.encode(sum, types)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal event")
		return
	}

	h.buffer.Append(evt)
	metrics.FeedEventsTotal.Inc()

	select {
	case h.broadcast <- broadcast{event: evt, msg: msg}:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) encode(sum ChangeSetSummary, types []string) (*Event, []byte, error) {
	evt := &Event{
		Type:  EventChangeSet,
		ID:    h.seq.Add(1),
		Time:  time.Now(),
		types: types,
	}

	for {
		data, err := json.Marshal(sum)
		if err != nil {
			return nil, nil, err
		}
		evt.Data = data

		msg, err := json.Marshal(evt)
		if err != nil {
			return nil, nil, err
		}

		if len(msg) <= maxBroadcastPayload || sum.Truncated {
			return evt, msg, nil
		}

		h.log.WithFields(logrus.Fields{
			"change_set":   sum.ID,
			"payload_size": len(msg),
		}).Debug("feed.truncated")

		sum.Objects = nil
		sum.Truncated = true
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
		// Run loop already exited; client cleanup happened in Run shutdown.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Shutdown sends a shutdown frame to every connected client, waits for
// their write pumps to flush, then closes all connections. It blocks until
// Run has returned.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainClients sends a close frame to every client and waits for buffers to flush.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining feed clients")

	shutdownMsg := []byte(`{"type":"shutdown","message":"server shutting down"}`)
	for client := range h.clients {
		client.trySend(shutdownMsg)
	}

	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond) //nolint:mnd // poll interval
	defer ticker.Stop()

wait:
	for {
		allDrained := true
		for client := range h.clients {
			if len(client.send) > 0 {
				allDrained = false
				break
			}
		}

		if allDrained {
			break
		}

		select {
		case <-deadline:
			h.log.Warn("feed drain timeout, closing remaining clients")
			break wait
		case <-ticker.C:
		}
	}

	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}

	h.principalCount = make(map[string]int)
	h.setCount()
}

// ReplayEvents queues buffered events after lastEventID that match the
// client's filter. It returns false when some of them are gone.
func (h *Hub) ReplayEvents(client *Client, lastEventID uint64) bool {
	events, complete := h.buffer.Replay(lastEventID)
	if !complete {
		return false
	}

	want := client.typeFilter()
	for _, evt := range events {
		if !evt.touchesAny(want) {
			continue
		}
		msg, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		// A full queue ends the replay; the hub drops clients that fall behind.
		if !client.trySend(msg) {
			break
		}
	}

	return true
}
