package clickhouse

import (
	"assetactivity/internal/domain"
	"sort"
	"strconv"
	"time"
)

// One event of a daily log, flattened for the analytical store
type ActivityRow struct {
	Day       time.Time
	EntityID  uint32
	Hour      uint16
	Seq       uint16 // position inside the entity's sequence
	EventType string
	Venue     string // marketplace or staking protocol, "" for transfers and breaks
	FromValue string
	ToValue   string
}

// Rows flattens a daily log, ordered by entity then sequence
func Rows(day time.Time, l *domain.EventLog) []ActivityRow {
	if l == nil || len(l.ActivityLog) == 0 {
		return nil
	}

	ids := make([]domain.EntityID, 0, len(l.ActivityLog))
	for id := range l.ActivityLog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]ActivityRow, 0, l.Summary.TotalEvents)
	for _, id := range ids {
		for seq, ev := range l.ActivityLog[id] {
			row := ActivityRow{
				Day:       day.UTC(),
				EntityID:  uint32(id),
				Hour:      uint16(ev.Hour()),
				Seq:       uint16(seq),
				EventType: string(ev.Type()),
			}

			switch e := ev.(type) {
			case domain.Sale:
				row.Venue, row.FromValue, row.ToValue = e.Marketplace, e.From, e.To
			case domain.Transfer:
				row.FromValue, row.ToValue = e.From, e.To
			case domain.Listing:
				row.Venue = e.Marketplace
			case domain.Delisting:
				row.Venue = e.Marketplace
			case domain.Stake:
				row.Venue = e.Protocol
			case domain.Unstake:
				row.Venue = e.Protocol
			case domain.BreakChange:
				row.FromValue, row.ToValue = strconv.FormatBool(e.From), strconv.FormatBool(e.To)
			}

			rows = append(rows, row)
		}
	}

	return rows
}
