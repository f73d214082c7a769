package live

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/metrics"
	"github.com/Lumenline/optimizer-dashboard/pkg/eventbus"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

const pingInterval = 30 * time.Second

// Hub bridges the in-process run event bus onto websocket subscribers so
// the dashboard updates without polling.
type Hub struct {
	logger *zap.Logger
	bus    *eventbus.Bus[model.RunStatusEvent]
}

func NewHub(logger *zap.Logger, bus *eventbus.Bus[model.RunStatusEvent]) *Hub {
	return &Hub{logger: logger, bus: bus}
}

// UpgradeRequired rejects plain HTTP requests on the websocket route.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the websocket handler for the live feed.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		events, cancel := h.bus.Subscribe()
		defer cancel()

		metrics.LiveSubscribers.Inc()
		defer metrics.LiveSubscribers.Dec()
		h.logger.Debug("live.subscriber_connected", zap.String("remote", conn.RemoteAddr().String()))

		// Reader goroutine: we never expect client frames, but reading is
		// what surfaces close frames and dead peers.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					h.logger.Debug("live.write_failed", zap.Error(err))
					return
				}
			case <-ping.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				h.logger.Debug("live.subscriber_disconnected")
				return
			}
		}
	})
}
