package websocket

import (
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
)

// MessageType tags the JSON frames exchanged with observer clients.
type MessageType string

const (
	MessageTypeClientBid          MessageType = "client_bid"
	MessageTypeServerBidAccepted  MessageType = "server_bid_accepted"
	MessageTypeServerLotClosed    MessageType = "server_lot_closed"
	MessageTypeServerError        MessageType = "server_error"
	MessageTypeServerInitialState MessageType = "server_initial_state"
)

// BaseMessage carries the type tag every frame starts with.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is a buyer submitting a bid over the socket.
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		LotID    uuid.UUID `json:"lot_id"`
		BidderID uuid.UUID `json:"bidder_id"`
		Amount   int64     `json:"amount"`
	} `json:"payload"`
}

// ServerBidAcceptedMessage relays a bid-accepted event to observers.
type ServerBidAcceptedMessage struct {
	BaseMessage
	Payload domain.BidAcceptedEvent `json:"payload"`
}

// ServerLotClosedMessage relays the lot's one closing event to observers.
type ServerLotClosedMessage struct {
	BaseMessage
	Payload domain.LotClosedEvent `json:"payload"`
}

// ServerErrorMessage reports a rejected action back to one client.
// MinRequired is set on bid-too-low rejections so the client can resubmit
// immediately.
type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Error       string `json:"error"`
		MinRequired int64  `json:"min_required,omitempty"`
	} `json:"payload"`
}

// ServerInitialStateMessage is sent once, when a client joins a lot.
type ServerInitialStateMessage struct {
	BaseMessage
	Payload struct {
		LotID      uuid.UUID  `json:"lot_id"`
		Name       string     `json:"name"`
		Quantity   int64      `json:"quantity"`
		BasePrice  int64      `json:"base_price"`
		Status     string     `json:"status"`
		Deadline   *time.Time `json:"deadline,omitempty"`
		MinNextBid int64      `json:"min_next_bid"`
		HighestBid *int64     `json:"highest_bid,omitempty"`
	} `json:"payload"`
}
