package websocket

import (
	"context"

	shared "github.com/cristianortiz/harvestAuction/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the observer endpoint: GET /ws/lots/:lotID upgrades
// the connection, joins the client to the lot group and pushes the initial
// state.
func RegisterRoutes(ctx context.Context, app *fiber.App, hub *shared.Hub, handler *AuctionWSHandler) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/lots/:lotID", websocket.New(func(conn *websocket.Conn) {
		lotID, err := uuid.Parse(conn.Params("lotID"))
		if err != nil {
			_ = conn.Close()
			return
		}

		client := &shared.Client{
			Hub:   hub,
			Conn:  conn,
			Send:  make(chan []byte, 32),
			LotID: lotID.String(),
			ID:    uuid.NewString(),
		}
		hub.RegisterClient(client)

		state, err := handler.svc.GetLotState(ctx, lotID)
		if err != nil {
			log.Warn("could not load initial lot state for observer",
				zap.String("lotID", lotID.String()),
				zap.Error(err),
			)
		} else {
			handler.SendInitialState(ctx, client, state)
		}

		go client.WritePump(ctx)
		// fiber's websocket handler owns this goroutine, keep reading here
		client.ReadPump(ctx)
	}))
}
