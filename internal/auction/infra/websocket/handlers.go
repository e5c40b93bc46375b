package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cristianortiz/harvestAuction/internal/auction/application"
	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/cristianortiz/harvestAuction/internal/shared/eventbus"
	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	"github.com/cristianortiz/harvestAuction/internal/shared/websocket"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionWSHandler connects the observer gateway to the auction service:
// inbound client bids go to the admission service, events from the bus fan
// out to the clients watching each lot.
type AuctionWSHandler struct {
	svc application.AuctionService
	hub *websocket.Hub
	bus eventbus.Bus
}

func NewAuctionWSHandler(svc application.AuctionService, hub *websocket.Hub, bus eventbus.Bus) *AuctionWSHandler {
	return &AuctionWSHandler{
		svc: svc,
		hub: hub,
		bus: bus,
	}
}

// BridgeEvents subscribes to the global topic and routes every event to the
// hub group of its lot. Per-lot order is preserved end to end: the bus
// delivers in publish order and the hub broadcast is a single channel.
func (h *AuctionWSHandler) BridgeEvents(ctx context.Context) error {
	events, err := h.bus.Subscribe(ctx, domain.GlobalTopic)
	if err != nil {
		return err
	}

	go func() {
		log.Info("Event bridge started")
		for msg := range events {
			var env domain.EventEnvelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				log.Warn("event bridge: undecodable event", zap.Error(err))
				continue
			}

			frame, err := h.frameFor(env, msg.Payload)
			if err != nil {
				log.Warn("event bridge: failed to frame event",
					zap.String("type", string(env.Type)),
					zap.Error(err),
				)
				continue
			}
			h.hub.BroadcastToLot(env.LotID.String(), frame)
		}
		log.Info("Event bridge stopped")
	}()
	return nil
}

func (h *AuctionWSHandler) frameFor(env domain.EventEnvelope, payload []byte) ([]byte, error) {
	switch env.Type {
	case domain.EventTypeBidAccepted:
		var event domain.BidAcceptedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return json.Marshal(ServerBidAcceptedMessage{
			BaseMessage: BaseMessage{Type: MessageTypeServerBidAccepted},
			Payload:     event,
		})
	case domain.EventTypeLotClosed:
		var event domain.LotClosedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return json.Marshal(ServerLotClosedMessage{
			BaseMessage: BaseMessage{Type: MessageTypeServerLotClosed},
			Payload:     event,
		})
	default:
		return nil, errors.New("unknown event type " + string(env.Type))
	}
}

// ListenForMessages drains the hub's inbound channel and dispatches client
// frames.
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler listening for inbound messages")
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		h.sendError(client, "invalid message format", 0)
		return
	}
	switch baseMsg.Type {
	case MessageTypeClientBid:
		h.handleClientBid(ctx, client, data)
	default:
		h.sendError(client, "unknown message type", 0)
	}
}

func (h *AuctionWSHandler) handleClientBid(ctx context.Context, client *websocket.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		h.sendError(client, "invalid bid message format", 0)
		return
	}

	if bidMsg.Payload.LotID.String() != client.LotID {
		h.sendError(client, "lot ID mismatch", 0)
		return
	}

	_, err := h.svc.PlaceBid(ctx, application.PlaceBidDTO{
		LotID:    bidMsg.Payload.LotID,
		BidderID: bidMsg.Payload.BidderID,
		Amount:   bidMsg.Payload.Amount,
	})
	if err != nil {
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			h.sendError(client, tooLow.Error(), tooLow.MinRequired)
			return
		}
		h.sendError(client, err.Error(), 0)
		return
	}
	// the accepted bid reaches this client through the event bridge, same
	// as every other observer
}

// SendInitialState pushes the lot snapshot to a client that just joined.
func (h *AuctionWSHandler) SendInitialState(ctx context.Context, client *websocket.Client, state *application.LotStateDTO) {
	msg := ServerInitialStateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerInitialState},
	}
	msg.Payload.LotID = state.LotID
	msg.Payload.Name = state.Name
	msg.Payload.Quantity = state.Quantity
	msg.Payload.BasePrice = state.BasePrice
	msg.Payload.Status = state.Status
	msg.Payload.Deadline = state.Deadline
	msg.Payload.MinNextBid = state.MinNextBid
	msg.Payload.HighestBid = state.HighestBid

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal initial state", zap.Error(err))
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Warn("client send channel full, initial state dropped",
			zap.String("clientID", client.ID),
		)
	}
}

func (h *AuctionWSHandler) sendError(client *websocket.Client, errorMessage string, minRequired int64) {
	errMsg := ServerErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerError},
	}
	errMsg.Payload.Error = errorMessage
	errMsg.Payload.MinRequired = minRequired

	data, err := json.Marshal(errMsg)
	if err != nil {
		log.Error("failed to marshal error message", zap.Error(err))
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Warn("client send channel full or closed, error not delivered",
			zap.String("clientID", client.ID),
		)
	}
}
