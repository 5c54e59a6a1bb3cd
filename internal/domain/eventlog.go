package domain

import (
	"encoding/json"
	"fmt"
)

// Counter names one summary field; the string is the JSON key
type Counter string

const (
	CounterBBLSales           Counter = "bbl_sales"
	CounterBoostSales         Counter = "boost_sales"
	CounterTransfers          Counter = "transfers"
	CounterBBLListings        Counter = "bbl_listings"
	CounterBBLDelistings      Counter = "bbl_delistings"
	CounterBoostListings      Counter = "boost_listings"
	CounterBoostDelistings    Counter = "boost_delistings"
	CounterDAODAOStakes       Counter = "daodao_stakes"
	CounterDAODAOUnstakes     Counter = "daodao_unstakes"
	CounterEnterpriseStakes   Counter = "enterprise_stakes"
	CounterEnterpriseUnstakes Counter = "enterprise_unstakes"
	CounterBreaks             Counter = "breaks"
	CounterTotalEvents        Counter = "total_events"
)

// Counters lists every per-kind counter in serialization order (total_events excluded)
var Counters = []Counter{
	CounterBBLSales, CounterBoostSales, CounterTransfers,
	CounterBBLListings, CounterBBLDelistings,
	CounterBoostListings, CounterBoostDelistings,
	CounterDAODAOStakes, CounterDAODAOUnstakes,
	CounterEnterpriseStakes, CounterEnterpriseUnstakes,
	CounterBreaks,
}

// Summary is the same fixed counter block at every hierarchy level
type Summary struct {
	BBLSales           int `json:"bbl_sales"`
	BoostSales         int `json:"boost_sales"`
	Transfers          int `json:"transfers"`
	BBLListings        int `json:"bbl_listings"`
	BBLDelistings      int `json:"bbl_delistings"`
	BoostListings      int `json:"boost_listings"`
	BoostDelistings    int `json:"boost_delistings"`
	DAODAOStakes       int `json:"daodao_stakes"`
	DAODAOUnstakes     int `json:"daodao_unstakes"`
	EnterpriseStakes   int `json:"enterprise_stakes"`
	EnterpriseUnstakes int `json:"enterprise_unstakes"`
	Breaks             int `json:"breaks"`
	TotalEvents        int `json:"total_events"`
}

func (s *Summary) field(c Counter) *int {
	switch c {
	case CounterBBLSales:
		return &s.BBLSales
	case CounterBoostSales:
		return &s.BoostSales
	case CounterTransfers:
		return &s.Transfers
	case CounterBBLListings:
		return &s.BBLListings
	case CounterBBLDelistings:
		return &s.BBLDelistings
	case CounterBoostListings:
		return &s.BoostListings
	case CounterBoostDelistings:
		return &s.BoostDelistings
	case CounterDAODAOStakes:
		return &s.DAODAOStakes
	case CounterDAODAOUnstakes:
		return &s.DAODAOUnstakes
	case CounterEnterpriseStakes:
		return &s.EnterpriseStakes
	case CounterEnterpriseUnstakes:
		return &s.EnterpriseUnstakes
	case CounterBreaks:
		return &s.Breaks
	case CounterTotalEvents:
		return &s.TotalEvents
	}
	return nil
}

// Get returns the value of a counter; unknown names read as 0
func (s Summary) Get(c Counter) int {
	if p := s.field(c); p != nil {
		return *p
	}
	return 0
}

// Record counts one event: its own counter plus total_events
func (s *Summary) Record(c Counter) {
	if p := s.field(c); p != nil && c != CounterTotalEvents {
		*p++
	}
	s.TotalEvents++
}

// Add sums other into s field by field
func (s *Summary) Add(other Summary) {
	for _, c := range Counters {
		*s.field(c) += other.Get(c)
	}
	s.TotalEvents += other.TotalEvents
}

// SumKinds is the sum of every counter except total_events
func (s Summary) SumKinds() int {
	n := 0
	for _, c := range Counters {
		n += s.Get(c)
	}
	return n
}

// EventLog is the per-period artifact; ActivityLog is sparse (no empty entries)
type EventLog struct {
	Summary     Summary             `json:"summary"`
	ActivityLog map[EntityID]Events `json:"activity_log"`
}

func NewEventLog() *EventLog {
	return &EventLog{ActivityLog: make(map[EntityID]Events)}
}

// Append records ev for id, keeping summary and activity log in step
func (l *EventLog) Append(id EntityID, ev Event) {
	if l.ActivityLog == nil {
		l.ActivityLog = make(map[EntityID]Events)
	}
	l.ActivityLog[id] = append(l.ActivityLog[id], ev)
	l.Summary.Record(ev.Counter())
}

// EventCount is the number of events across all entities
func (l *EventLog) EventCount() int {
	n := 0
	for _, evs := range l.ActivityLog {
		n += len(evs)
	}
	return n
}

// Validate checks the counter invariants and the sparse-map invariant
func (l *EventLog) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: nil event log", ErrMalformedInput)
	}

	for _, c := range Counters {
		if l.Summary.Get(c) < 0 {
			return fmt.Errorf("%w: negative counter %s", ErrMalformedInput, c)
		}
	}

	if sum := l.Summary.SumKinds(); sum != l.Summary.TotalEvents {
		return fmt.Errorf("%w: total_events=%d, counters sum=%d", ErrMalformedInput, l.Summary.TotalEvents, sum)
	}

	var recount Summary
	for id, evs := range l.ActivityLog {
		if id == 0 {
			return fmt.Errorf("%w: entity id 0 in activity_log, ids start at 1", ErrMalformedInput)
		}
		if len(evs) == 0 {
			return fmt.Errorf("%w: entity %s has an empty event list", ErrMalformedInput, id)
		}
		for _, ev := range evs {
			recount.Record(ev.Counter())
		}
	}

	if recount != l.Summary {
		return fmt.Errorf("%w: summary does not match activity_log (events=%d, total_events=%d)",
			ErrMalformedInput, recount.TotalEvents, l.Summary.TotalEvents)
	}

	return nil
}

// MarshalEventLog produces the persisted JSON form
func MarshalEventLog(l *EventLog) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("nil event log")
	}

	out := *l
	if out.ActivityLog == nil {
		out.ActivityLog = map[EntityID]Events{}
	}
	return json.Marshal(out)
}

// UnmarshalEventLog decodes and validates a persisted log
func UnmarshalEventLog(data []byte) (*EventLog, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty event log data", ErrMalformedInput)
	}

	var l EventLog
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if l.ActivityLog == nil {
		l.ActivityLog = make(map[EntityID]Events)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}

	return &l, nil
}
