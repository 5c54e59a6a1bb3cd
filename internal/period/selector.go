package period

import (
	"fmt"
	"sort"
)

// Select returns the source keys whose whole range lies inside the target period,
// ascending and capped at maxCount (maxCount <= 0 means no cap).
//
// Membership is tested against the target's calendar range: a day belongs to a
// week only if it falls on that week's Monday..Sunday, never because it shares
// the year prefix. Keys that do not parse at the source level are ignored.
func Select(source, target Level, targetKey string, keys []string, maxCount int) ([]string, error) {
	want, err := SourceLevel(target)
	if err != nil {
		return nil, err
	}
	if want != source {
		return nil, fmt.Errorf("%w: %s does not roll up into %s", ErrUnsupportedRollup, source, target)
	}

	tp, err := Parse(target, targetKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		sp, err := Parse(source, k)
		if err != nil {
			continue
		}
		if tp.Contains(sp) {
			out = append(out, k)
		}
	}

	sort.Strings(out)
	if maxCount > 0 && len(out) > maxCount {
		out = out[:maxCount]
	}

	return out, nil
}

// DefaultMaxCount is the largest number of children a target period can have
func DefaultMaxCount(target Level) int {
	switch target {
	case Day:
		return 24
	case Week:
		return 7
	case Month:
		return 31
	case Year:
		return 12
	}
	return 0
}
