package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event bus topics are lot-scoped plus one global channel for dashboards.
const GlobalTopic = "lots"

// LotTopic is the per-lot event bus topic.
func LotTopic(lotID uuid.UUID) string {
	return "lot:" + lotID.String()
}

// EventType tags the JSON envelope of every published event.
type EventType string

const (
	EventTypeBidAccepted EventType = "bid_accepted"
	EventTypeLotClosed   EventType = "lot_closed"
)

// ActorSystem marks closures triggered by the deadline scheduler rather than
// an operator.
const ActorSystem = "system"

// EventEnvelope is the minimal shape shared by all events, enough for
// subscribers to route before decoding the full payload.
type EventEnvelope struct {
	Type  EventType `json:"type"`
	LotID uuid.UUID `json:"lot_id"`
}

// BidPayload is the bid as carried inside events, enriched with the bidder's
// display name when available.
type BidPayload struct {
	ID         uuid.UUID `json:"id"`
	BidderID   uuid.UUID `json:"bidder_id"`
	BidderName string    `json:"bidder_name,omitempty"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// BidAcceptedEvent is published once per accepted bid, on the lot topic and
// the global topic.
type BidAcceptedEvent struct {
	Type  EventType  `json:"type"`
	LotID uuid.UUID  `json:"lot_id"`
	Bid   BidPayload `json:"bid"`
}

// LotClosedEvent is published exactly once per lot, when it is finalized.
// WinningBid is null when the lot closed with no sale. Downstream order and
// payment flows key off this payload.
type LotClosedEvent struct {
	Type       EventType   `json:"type"`
	LotID      uuid.UUID   `json:"lot_id"`
	Status     LotStatus   `json:"status"`
	WinningBid *BidPayload `json:"winning_bid"`
	Actor      string      `json:"actor"`
}

// NewBidPayload maps a persisted bid into its event form.
func NewBidPayload(bid *Bid, bidderName string) BidPayload {
	return BidPayload{
		ID:         bid.ID,
		BidderID:   bid.BidderID,
		BidderName: bidderName,
		Amount:     bid.Amount,
		CreatedAt:  bid.CreatedAt,
	}
}
