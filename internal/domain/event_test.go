package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_JSONShape(t *testing.T) {
	evs := Events{
		Sale{Marketplace: MarketBBL, From: "alice", To: "bob", At: 3},
		Transfer{From: "bob", To: "carol", At: 4},
		Listing{Marketplace: MarketBoost, At: 5},
		Delisting{Marketplace: MarketBBL, At: 6},
		Stake{Protocol: ProtocolDAODAO, At: 7},
		Unstake{Protocol: ProtocolEnterprise, At: 8},
		BreakChange{From: false, To: true, At: 9},
	}

	b, err := json.Marshal(evs)
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"type":"sale","marketplace":"bbl","from":"alice","to":"bob","hour":3},
		{"type":"transfer","from":"bob","to":"carol","hour":4},
		{"type":"listing","marketplace":"boost","hour":5},
		{"type":"delisting","marketplace":"bbl","hour":6},
		{"type":"stake","protocol":"daodao","hour":7},
		{"type":"unstake","protocol":"enterprise","hour":8},
		{"type":"break_change","from":false,"to":true,"hour":9}
	]`, string(b))

	var back Events
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, evs, back)
}

func TestEvents_UnmarshalRejectsUnknown(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown type", `[{"type":"burn","hour":1}]`},
		{"unknown marketplace", `[{"type":"listing","marketplace":"opensea","hour":1}]`},
		{"unknown protocol", `[{"type":"stake","protocol":"lido","hour":1}]`},
		{"break change without values", `[{"type":"break_change","hour":1}]`},
		{"owner not a string", `[{"type":"transfer","from":1,"to":"bob","hour":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var evs Events
			err := json.Unmarshal([]byte(tt.in), &evs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "event #0")
		})
	}
}

func TestEvent_Counter(t *testing.T) {
	tests := []struct {
		ev   Event
		want Counter
	}{
		{Sale{Marketplace: MarketBBL}, CounterBBLSales},
		{Sale{Marketplace: MarketBoost}, CounterBoostSales},
		{Transfer{}, CounterTransfers},
		{Listing{Marketplace: MarketBBL}, CounterBBLListings},
		{Listing{Marketplace: MarketBoost}, CounterBoostListings},
		{Delisting{Marketplace: MarketBBL}, CounterBBLDelistings},
		{Delisting{Marketplace: MarketBoost}, CounterBoostDelistings},
		{Stake{Protocol: ProtocolDAODAO}, CounterDAODAOStakes},
		{Stake{Protocol: ProtocolEnterprise}, CounterEnterpriseStakes},
		{Unstake{Protocol: ProtocolDAODAO}, CounterDAODAOUnstakes},
		{Unstake{Protocol: ProtocolEnterprise}, CounterEnterpriseUnstakes},
		{BreakChange{From: true}, CounterBreaks},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.Counter(), "%T", tt.ev)
	}
}

func TestParseEntityID(t *testing.T) {
	id, err := ParseEntityID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, EntityID(42), id)
	assert.Equal(t, "42", id.String())

	for _, in := range []string{"", "0", "-1", "abc", "4294967296"} {
		_, err = ParseEntityID(in)
		assert.ErrorIs(t, err, ErrInvalidEntityID, "input %q", in)
	}
}
