package domain

import (
	"encoding/json"
	"fmt"
)

// EventType is the "type" discriminator of a serialized event
type EventType string

const (
	EventSale        EventType = "sale"
	EventTransfer    EventType = "transfer"
	EventListing     EventType = "listing"
	EventDelisting   EventType = "delisting"
	EventStake       EventType = "stake"
	EventUnstake     EventType = "unstake"
	EventBreakChange EventType = "break_change"
)

// Event is a closed sum over the seven kinds below. Hour is the position of the
// pair inside the daily window the event was detected in; merges keep it verbatim.
type Event interface {
	Type() EventType
	Hour() int
	Counter() Counter
	sealed()
}

type Sale struct {
	Marketplace string
	From        string
	To          string
	At          int
}

type Transfer struct {
	From string
	To   string
	At   int
}

type Listing struct {
	Marketplace string
	At          int
}

type Delisting struct {
	Marketplace string
	At          int
}

type Stake struct {
	Protocol string
	At       int
}

type Unstake struct {
	Protocol string
	At       int
}

type BreakChange struct {
	From bool
	To   bool
	At   int
}

func (Sale) Type() EventType        { return EventSale }
func (Transfer) Type() EventType    { return EventTransfer }
func (Listing) Type() EventType     { return EventListing }
func (Delisting) Type() EventType   { return EventDelisting }
func (Stake) Type() EventType       { return EventStake }
func (Unstake) Type() EventType     { return EventUnstake }
func (BreakChange) Type() EventType { return EventBreakChange }

func (e Sale) Hour() int        { return e.At }
func (e Transfer) Hour() int    { return e.At }
func (e Listing) Hour() int     { return e.At }
func (e Delisting) Hour() int   { return e.At }
func (e Stake) Hour() int       { return e.At }
func (e Unstake) Hour() int     { return e.At }
func (e BreakChange) Hour() int { return e.At }

func (Sale) sealed()        {}
func (Transfer) sealed()    {}
func (Listing) sealed()     {}
func (Delisting) sealed()   {}
func (Stake) sealed()       {}
func (Unstake) sealed()     {}
func (BreakChange) sealed() {}

func (e Sale) Counter() Counter {
	if e.Marketplace == MarketBoost {
		return CounterBoostSales
	}
	return CounterBBLSales
}

func (Transfer) Counter() Counter { return CounterTransfers }

func (e Listing) Counter() Counter {
	if e.Marketplace == MarketBoost {
		return CounterBoostListings
	}
	return CounterBBLListings
}

func (e Delisting) Counter() Counter {
	if e.Marketplace == MarketBoost {
		return CounterBoostDelistings
	}
	return CounterBBLDelistings
}

func (e Stake) Counter() Counter {
	if e.Protocol == ProtocolEnterprise {
		return CounterEnterpriseStakes
	}
	return CounterDAODAOStakes
}

func (e Unstake) Counter() Counter {
	if e.Protocol == ProtocolEnterprise {
		return CounterEnterpriseUnstakes
	}
	return CounterDAODAOUnstakes
}

func (BreakChange) Counter() Counter { return CounterBreaks }

// wireEvent is the persisted shape; which optional fields are set depends on Type
type wireEvent struct {
	Type        EventType       `json:"type"`
	Marketplace string          `json:"marketplace,omitempty"`
	Protocol    string          `json:"protocol,omitempty"`
	From        json.RawMessage `json:"from,omitempty"`
	To          json.RawMessage `json:"to,omitempty"`
	Hour        int             `json:"hour"`
}

func toWire(ev Event) (wireEvent, error) {
	w := wireEvent{Type: ev.Type(), Hour: ev.Hour()}

	var from, to any
	switch e := ev.(type) {
	case Sale:
		w.Marketplace = e.Marketplace
		from, to = e.From, e.To
	case Transfer:
		from, to = e.From, e.To
	case Listing:
		w.Marketplace = e.Marketplace
	case Delisting:
		w.Marketplace = e.Marketplace
	case Stake:
		w.Protocol = e.Protocol
	case Unstake:
		w.Protocol = e.Protocol
	case BreakChange:
		from, to = e.From, e.To
	default:
		return w, fmt.Errorf("unknown event %T", ev)
	}

	if from != nil {
		b, err := json.Marshal(from)
		if err != nil {
			return w, err
		}
		w.From = b
	}
	if to != nil {
		b, err := json.Marshal(to)
		if err != nil {
			return w, err
		}
		w.To = b
	}

	return w, nil
}

func fromWire(w wireEvent) (Event, error) {
	switch w.Type {
	case EventSale:
		if w.Marketplace != MarketBBL && w.Marketplace != MarketBoost {
			return nil, fmt.Errorf("sale: unknown marketplace %q", w.Marketplace)
		}
		from, to, err := ownerPair(w)
		if err != nil {
			return nil, err
		}
		return Sale{Marketplace: w.Marketplace, From: from, To: to, At: w.Hour}, nil
	case EventTransfer:
		from, to, err := ownerPair(w)
		if err != nil {
			return nil, err
		}
		return Transfer{From: from, To: to, At: w.Hour}, nil
	case EventListing, EventDelisting:
		if w.Marketplace != MarketBBL && w.Marketplace != MarketBoost {
			return nil, fmt.Errorf("%s: unknown marketplace %q", w.Type, w.Marketplace)
		}
		if w.Type == EventListing {
			return Listing{Marketplace: w.Marketplace, At: w.Hour}, nil
		}
		return Delisting{Marketplace: w.Marketplace, At: w.Hour}, nil
	case EventStake, EventUnstake:
		if w.Protocol != ProtocolDAODAO && w.Protocol != ProtocolEnterprise {
			return nil, fmt.Errorf("%s: unknown protocol %q", w.Type, w.Protocol)
		}
		if w.Type == EventStake {
			return Stake{Protocol: w.Protocol, At: w.Hour}, nil
		}
		return Unstake{Protocol: w.Protocol, At: w.Hour}, nil
	case EventBreakChange:
		var from, to bool
		if err := json.Unmarshal(w.From, &from); err != nil {
			return nil, fmt.Errorf("break_change from: %w", err)
		}
		if err := json.Unmarshal(w.To, &to); err != nil {
			return nil, fmt.Errorf("break_change to: %w", err)
		}
		return BreakChange{From: from, To: to, At: w.Hour}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", w.Type)
	}
}

func ownerPair(w wireEvent) (string, string, error) {
	var from, to string
	if len(w.From) > 0 {
		if err := json.Unmarshal(w.From, &from); err != nil {
			return "", "", fmt.Errorf("%s from: %w", w.Type, err)
		}
	}
	if len(w.To) > 0 {
		if err := json.Unmarshal(w.To, &to); err != nil {
			return "", "", fmt.Errorf("%s to: %w", w.Type, err)
		}
	}
	return from, to, nil
}

// Events is the per-entity sequence; it owns the JSON codec of the sum type
type Events []Event

func (es Events) MarshalJSON() ([]byte, error) {
	out := make([]wireEvent, 0, len(es))
	for _, ev := range es {
		w, err := toWire(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

func (es *Events) UnmarshalJSON(b []byte) error {
	var raw []wireEvent
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make(Events, 0, len(raw))
	for i, w := range raw {
		ev, err := fromWire(w)
		if err != nil {
			return fmt.Errorf("event #%d: %w", i, err)
		}
		out = append(out, ev)
	}
	*es = out
	return nil
}
