package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrHeld = errors.New("period is being built by another writer")

// Single writer per period key (memory, redis, ...). Locks expire after a TTL so a
// crashed builder cannot block a period forever.
type Guard interface {
	// acquired=false -> someone else holds key, caller should back off.
	// token identifies this holder and must be passed back to Unlock.
	TryLock(ctx context.Context, key string) (token string, acquired bool, err error)
	// Unlock releases key only while token still owns it
	Unlock(ctx context.Context, key, token string) error
}

func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
