package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidEntityID = errors.New("invalid entity id")

// EntityID is the position of an asset in the fixed collection, 1-based
type EntityID uint32

func (id EntityID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseEntityID accepts the decimal form used as JSON object keys ("42")
func ParseEntityID(s string) (EntityID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidEntityID)
	}

	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q, err=%v", ErrInvalidEntityID, s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("%w %q: ids start at 1", ErrInvalidEntityID, s)
	}

	return EntityID(v), nil
}
