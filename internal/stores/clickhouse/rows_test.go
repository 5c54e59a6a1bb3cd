package clickhouse

import (
	"assetactivity/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRows_FlattensByEntityAndSequence(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	l := domain.NewEventLog()
	l.Append(9, domain.Stake{Protocol: domain.ProtocolEnterprise, At: 4})
	l.Append(2, domain.Sale{Marketplace: domain.MarketBBL, From: "a", To: "b", At: 1})
	l.Append(2, domain.Delisting{Marketplace: domain.MarketBBL, At: 1})
	l.Append(2, domain.BreakChange{From: true, To: false, At: 6})
	l.Append(5, domain.Transfer{From: "c", To: "d", At: 3})

	rows := Rows(day, l)
	require.Len(t, rows, 5)

	assert.Equal(t, ActivityRow{Day: day, EntityID: 2, Hour: 1, Seq: 0, EventType: "sale", Venue: "bbl", FromValue: "a", ToValue: "b"}, rows[0])
	assert.Equal(t, ActivityRow{Day: day, EntityID: 2, Hour: 1, Seq: 1, EventType: "delisting", Venue: "bbl"}, rows[1])
	assert.Equal(t, ActivityRow{Day: day, EntityID: 2, Hour: 6, Seq: 2, EventType: "break_change", FromValue: "true", ToValue: "false"}, rows[2])
	assert.Equal(t, ActivityRow{Day: day, EntityID: 5, Hour: 3, Seq: 0, EventType: "transfer", FromValue: "c", ToValue: "d"}, rows[3])
	assert.Equal(t, ActivityRow{Day: day, EntityID: 9, Hour: 4, Seq: 0, EventType: "stake", Venue: "enterprise"}, rows[4])
}

func TestRows_Empty(t *testing.T) {
	assert.Nil(t, Rows(time.Now(), nil))
	assert.Nil(t, Rows(time.Now(), domain.NewEventLog()))
}
