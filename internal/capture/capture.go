package capture

import (
	"assetactivity/internal/domain"
	"encoding/json"
	"fmt"
	"time"
)

/*
	Normalizes a raw capture into domain.Snapshot.
	Tolerant per entity (bad id or body -> skipped), strict per document.
*/

// Raw capture document as produced by the fetcher
type rawCapture struct {
	TakenAt time.Time                  `json:"taken_at"`
	Tokens  map[string]json.RawMessage `json:"tokens"`
}

// Every field is optional: missing booleans read as false, missing owner as unknown
type rawRecord struct {
	Owner            *string `json:"owner"`
	BBLListed        *bool   `json:"bbl_listed"`
	BoostListed      *bool   `json:"boost_listed"`
	DAODAOStaked     *bool   `json:"daodao_staked"`
	EnterpriseStaked *bool   `json:"enterprise_staked"`
	Broken           *bool   `json:"broken"`
}

// Stats about one decode, for logging by the caller
type Stats struct {
	TakenAt time.Time
	Records int
	Skipped int
	NoOwner int
}

func Decode(data []byte) (domain.Snapshot, Stats, error) {
	var st Stats
	if len(data) == 0 {
		return nil, st, fmt.Errorf("%w: empty capture", domain.ErrMalformedInput)
	}

	var raw rawCapture
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, st, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	if raw.Tokens == nil {
		return nil, st, fmt.Errorf("%w: capture has no tokens object", domain.ErrMalformedInput)
	}
	st.TakenAt = raw.TakenAt

	snap := make(domain.Snapshot, len(raw.Tokens))
	for k, body := range raw.Tokens {
		id, err := domain.ParseEntityID(k)
		if err != nil {
			st.Skipped++
			continue
		}

		var rr rawRecord
		if err = json.Unmarshal(body, &rr); err != nil || isNull(body) {
			st.Skipped++
			continue
		}

		rec := rr.normalize()
		if !rec.HasOwner() {
			st.NoOwner++
		}
		snap[id] = rec
	}
	st.Records = len(snap)

	return snap, st, nil
}

func (rr rawRecord) normalize() domain.Record {
	var rec domain.Record
	if rr.Owner != nil {
		rec.Owner = *rr.Owner
	}
	rec.BBLListed = flag(rr.BBLListed)
	rec.BoostListed = flag(rr.BoostListed)
	rec.DAODAOStaked = flag(rr.DAODAOStaked)
	rec.EnterpriseStaked = flag(rr.EnterpriseStaked)
	rec.Broken = flag(rr.Broken)
	return rec
}

func flag(b *bool) bool {
	return b != nil && *b
}

func isNull(b json.RawMessage) bool {
	return string(b) == "null"
}

// Encode writes a snapshot in the raw capture shape
func Encode(snap domain.Snapshot, takenAt time.Time) ([]byte, error) {
	out := struct {
		TakenAt time.Time                         `json:"taken_at"`
		Tokens  map[domain.EntityID]domain.Record `json:"tokens"`
	}{
		TakenAt: takenAt.UTC(),
		Tokens:  snap,
	}
	if out.Tokens == nil {
		out.Tokens = domain.Snapshot{}
	}
	return json.Marshal(out)
}
