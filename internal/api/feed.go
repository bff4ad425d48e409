package api

import (
	"context"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/middleware"
	"github.com/persistorai/changelog/internal/ws"
)

// FeedHandler upgrades GET /api/v1/feed to a WebSocket and attaches it to
// the hub until either side goes away.
type FeedHandler struct {
	appCtx  context.Context
	hub     *ws.Hub
	origins []string
	log     *logrus.Logger
}

// NewFeedHandler creates a FeedHandler. Connections are closed when appCtx
// is cancelled. origins are the accepted Origin patterns.
func NewFeedHandler(appCtx context.Context, hub *ws.Hub, origins []string, log *logrus.Logger) *FeedHandler {
	return &FeedHandler{appCtx: appCtx, hub: hub, origins: origins, log: log}
}

// Serve handles the upgrade. The accept failure has already been written to
// the response by the websocket package.
func (h *FeedHandler) Serve(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:       h.origins,
		CompressionMode:      websocket.CompressionContextTakeover,
		CompressionThreshold: 128,
	})
	if err != nil {
		h.log.WithError(err).Warn("feed upgrade rejected")
		return
	}

	principal := c.GetString(middleware.PrincipalKey)
	client := ws.NewClient(h.hub, conn, principal)
	h.hub.Register(client)

	ctx, cancel := context.WithCancel(h.appCtx)
	defer cancel()
	stop := context.AfterFunc(c.Request.Context(), cancel)
	defer stop()

	h.log.WithField("principal", principal).Debug("feed.connected")

	client.Run(ctx)
}
