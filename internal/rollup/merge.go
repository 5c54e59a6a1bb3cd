package rollup

import (
	"assetactivity/internal/domain"
)

// Merge folds child logs into one coarser log.
//
// Summaries add element-wise, so counts do not depend on input order. Per-entity
// sequences are concatenated in input order, which callers must keep ascending
// by period key. The result never shares slices with the inputs: a rollup is
// always recomputed from its full input set and overwrites the stored target.
func Merge(logs []*domain.EventLog) *domain.EventLog {
	out := domain.NewEventLog()

	for _, l := range logs {
		if l == nil {
			continue
		}

		out.Summary.Add(l.Summary)

		for id, evs := range l.ActivityLog {
			if len(evs) == 0 {
				continue
			}
			cur := out.ActivityLog[id]
			if cur == nil {
				cur = make(domain.Events, 0, len(evs))
			}
			out.ActivityLog[id] = append(cur, evs...)
		}
	}

	return out
}
