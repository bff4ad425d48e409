package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	clientSendBuffer = 256
	readLimit        = 4096
	writeTimeout     = 10 * time.Second
	maxConnLifetime  = 4 * time.Hour
	pingInterval     = 30 * time.Second
	pingTimeout      = 10 * time.Second
	maxMissedPongs   = 2
)

var (
	errFeedClosed = errors.New("feed closed")
	errLifetime   = errors.New("max connection lifetime exceeded")
)

// Client is one feed subscriber. The hub queues encoded messages on send;
// Run drains them to the connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	log       *logrus.Logger
	Principal string

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// types is the subscription filter; nil means every type.
	types atomic.Pointer[map[string]struct{}]
}

// NewClient wraps conn for principal. It does nothing until registered with
// the hub and Run.
func NewClient(hub *Hub, conn *websocket.Conn, principal string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		log:       hub.log,
		Principal: principal,
		send:      make(chan []byte, clientSendBuffer),
	}
}

// trySend queues msg without blocking. It reports false when the queue is
// full or closed.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the queue; later calls are no-ops.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) typeFilter() map[string]struct{} {
	if p := c.types.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *Client) setTypeFilter(types []string) {
	if len(types) == 0 {
		c.types.Store(nil)
		return
	}

	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	c.types.Store(&set)
}

// Run serves the connection until the peer leaves, the hub drops the client,
// ctx ends or the connection reaches its maximum lifetime. The client is
// unregistered and the connection closed on return.
func (c *Client) Run(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // already closing
	}()

	c.conn.SetReadLimit(readLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	g.Go(func() error { return c.keepAlive(gctx) })

	err := g.Wait()

	log := c.log.WithField("principal", c.Principal)
	switch {
	case errors.Is(err, errLifetime):
		log.Info("feed.lifetime_exceeded")
	case errors.Is(err, errFeedClosed), ctx.Err() != nil:
		// dropped by the hub or server shutdown
	case websocket.CloseStatus(err) != -1:
		log.WithField("status", websocket.CloseStatus(err)).Debug("feed.disconnected")
	default:
		log.WithError(err).Debug("feed.connection_failed")
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		_, msg, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		c.handleMessage(msg)
	}
}

// writeLoop drains the send queue. It closes the connection itself when the
// hub closes the queue or the lifetime runs out, so the peer gets a close
// status rather than a dropped socket.
func (c *Client) writeLoop(ctx context.Context) error {
	lifetime := time.NewTimer(maxConnLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lifetime.C:
			c.conn.Close(websocket.StatusNormalClosure, errLifetime.Error()) //nolint:errcheck // best-effort
			return errLifetime
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, errFeedClosed.Error()) //nolint:errcheck // best-effort
				return errFeedClosed
			}

			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// keepAlive pings the peer and gives up after maxMissedPongs consecutive
// misses.
func (c *Client) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.conn.Ping(pctx)
		cancel()

		if err == nil {
			missed = 0
			continue
		}
		if missed++; missed >= maxMissedPongs {
			return errors.New("peer stopped answering pings")
		}
	}
}

// handleMessage applies a subscribe request: it replaces the type filter
// and replays buffered events after last_event_id. Anything else is ignored.
func (c *Client) handleMessage(raw []byte) {
	var msg SubscribeMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "subscribe" {
		return
	}

	c.setTypeFilter(msg.Types)

	if c.hub.ReplayEvents(c, msg.LastEventID) {
		return
	}

	reset, err := json.Marshal(ResetMsg{
		Type:   "reset",
		Reason: "requested events no longer available, re-read the change log",
	})
	if err == nil {
		c.trySend(reset)
	}
}
