package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mathla-api/internal/service"
)

const feedPingInterval = 30 * time.Second

// SubmissionFeedHandler streams lifecycle events to connected users over a websocket.
type SubmissionFeedHandler struct {
	events service.SubmissionEventBus
	logger zerolog.Logger
}

// NewSubmissionFeedHandler creates the websocket feed handler.
func NewSubmissionFeedHandler(events service.SubmissionEventBus, logger zerolog.Logger) *SubmissionFeedHandler {
	return &SubmissionFeedHandler{
		events: events,
		logger: logger.With().Str("component", "submission_feed_handler").Logger(),
	}
}

// Register binds the websocket upgrade route. It must be registered before
// any "/:id" route on the same group.
func (h *SubmissionFeedHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if userIDFromContext(c) == 0 {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *SubmissionFeedHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(uint)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	events, cleanup := h.events.Subscribe(userID)
	defer cleanup()

	logger := h.logger.With().Uint("user_id", userID).Logger()
	if correlation, ok := conn.Locals("correlation_id").(string); ok && correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
	}
	logger.Info().Msg("submission feed connected")
	defer logger.Info().Msg("submission feed disconnected")

	// The reader only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("submission feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
