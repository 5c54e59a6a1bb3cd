package classifier

import (
	"assetactivity/internal/config"
	"assetactivity/internal/domain"
	"errors"
	"fmt"

	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Diffs temporally adjacent snapshots into typed events.
	Pure in-memory scan over the fixed id domain [1, EntityCount]; no I/O, no locks.
*/

const (
	DefaultEntityCount  = 10000
	DefaultMinSnapshots = 2
)

type Detector struct {
	Log          logger.Logger
	EntityCount  int // size of the id domain, ids are 1..EntityCount
	MinSnapshots int // never below 2, one pair is needed for any transition
}

func NewDetector(log logger.Logger, cfg *config.ClassifierConfig) (*Detector, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the detector")
	}

	entityCount := cfg.EntityCount
	if entityCount <= 0 {
		entityCount = DefaultEntityCount
	}

	minSnapshots := cfg.MinSnapshots
	if minSnapshots < DefaultMinSnapshots {
		minSnapshots = DefaultMinSnapshots
	}

	return &Detector{
		Log:          log,
		EntityCount:  entityCount,
		MinSnapshots: minSnapshots,
	}, nil
}

// Detect scans every adjacent (prev, curr) pair in order. Position i is the
// index of curr, so the first pair is hour 1. Ids missing from either side of a
// pair are skipped for that pair.
func (d *Detector) Detect(snapshots []domain.Snapshot) (*domain.EventLog, error) {
	if len(snapshots) < d.MinSnapshots {
		return nil, fmt.Errorf("%w: got %d snapshots, need at least %d", domain.ErrInsufficientData, len(snapshots), d.MinSnapshots)
	}

	out := domain.NewEventLog()
	skipped := 0

	for i := 1; i < len(snapshots); i++ {
		prev, curr := snapshots[i-1], snapshots[i]

		for n := 1; n <= d.EntityCount; n++ {
			id := domain.EntityID(n)

			p, okPrev := prev.Get(id)
			c, okCurr := curr.Get(id)
			if !okPrev || !okCurr {
				skipped++
				continue
			}

			for _, ev := range Classify(p, c, i) {
				out.Append(id, ev)
			}
		}
	}

	if d.Log != nil {
		d.Log.Debugf("Detect: snapshots=%d, events=%d, entities=%d, skipped_pairs=%d",
			len(snapshots), out.Summary.TotalEvents, len(out.ActivityLog), skipped)
	}

	return out, nil
}

// Classify returns the events for one entity between two observations, in the
// fixed order: ownership, bbl listing, boost listing, daodao, enterprise, condition.
func Classify(prev, curr domain.Record, hour int) []domain.Event {
	var evs []domain.Event

	// at most one ownership event; bbl listing wins over boost listing
	if prev.HasOwner() && curr.HasOwner() && prev.Owner != curr.Owner {
		switch {
		case prev.BBLListed:
			evs = append(evs, domain.Sale{Marketplace: domain.MarketBBL, From: prev.Owner, To: curr.Owner, At: hour})
		case prev.BoostListed:
			evs = append(evs, domain.Sale{Marketplace: domain.MarketBoost, From: prev.Owner, To: curr.Owner, At: hour})
		default:
			evs = append(evs, domain.Transfer{From: prev.Owner, To: curr.Owner, At: hour})
		}
	}

	evs = appendListing(evs, domain.MarketBBL, prev.BBLListed, curr.BBLListed, hour)
	evs = appendListing(evs, domain.MarketBoost, prev.BoostListed, curr.BoostListed, hour)
	evs = appendStake(evs, domain.ProtocolDAODAO, prev.DAODAOStaked, curr.DAODAOStaked, hour)
	evs = appendStake(evs, domain.ProtocolEnterprise, prev.EnterpriseStaked, curr.EnterpriseStaked, hour)

	if prev.Broken != curr.Broken {
		evs = append(evs, domain.BreakChange{From: prev.Broken, To: curr.Broken, At: hour})
	}

	return evs
}

func appendListing(evs []domain.Event, market string, was, is bool, hour int) []domain.Event {
	switch {
	case was == is:
		return evs
	case is:
		return append(evs, domain.Listing{Marketplace: market, At: hour})
	default:
		return append(evs, domain.Delisting{Marketplace: market, At: hour})
	}
}

func appendStake(evs []domain.Event, protocol string, was, is bool, hour int) []domain.Event {
	switch {
	case was == is:
		return evs
	case is:
		return append(evs, domain.Stake{Protocol: protocol, At: hour})
	default:
		return append(evs, domain.Unstake{Protocol: protocol, At: hour})
	}
}
