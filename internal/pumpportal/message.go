package pumpportal

import (
	"encoding/json"
	"errors"
	"fmt"

	"trend-scout/internal/domain"
)

// Decoding errors. Callers drop the message in every case.
var (
	// ErrNotEvent marks control frames such as subscription acknowledgements.
	ErrNotEvent = errors.New("pumpportal: not an event")
	// ErrUnknownType marks events whose txType is not recognized.
	ErrUnknownType = errors.New("pumpportal: unknown txType")
)

// EventKind discriminates Event.
type EventKind int

const (
	EventCreate EventKind = iota + 1
	EventTrade
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// Event is a decoded feed message. Exactly one of Create or Trade is set, per Kind.
type Event struct {
	Kind   EventKind
	Create *domain.CreateEvent
	Trade  *domain.TradeEvent
}

// envelope peeks at the discriminator before full decoding.
type envelope struct {
	TxType  *string `json:"txType"`
	Mint    string  `json:"mint"`
	Message string  `json:"message"`
	Errors  string  `json:"errors"`
}

// Decode parses one feed frame into an Event.
func Decode(msg []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.TxType == nil {
		if env.Errors != "" {
			return Event{}, fmt.Errorf("pumpportal: server error: %s", env.Errors)
		}
		return Event{}, ErrNotEvent
	}
	if env.Mint == "" {
		return Event{}, fmt.Errorf("decode %s: missing mint", *env.TxType)
	}

	switch *env.TxType {
	case domain.TxCreate:
		var ev domain.CreateEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return Event{}, fmt.Errorf("decode create: %w", err)
		}
		return Event{Kind: EventCreate, Create: &ev}, nil
	case domain.TxBuy, domain.TxSell, domain.TxTrade:
		var ev domain.TradeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return Event{}, fmt.Errorf("decode trade: %w", err)
		}
		return Event{Kind: EventTrade, Trade: &ev}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, *env.TxType)
	}
}

// request is an outbound subscription message.
type request struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

const (
	methodSubscribeNewToken     = "subscribeNewToken"
	methodSubscribeTokenTrade   = "subscribeTokenTrade"
	methodUnsubscribeTokenTrade = "unsubscribeTokenTrade"
)
