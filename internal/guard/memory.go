package guard

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

type memEntry struct {
	token    string
	expireAt int64 // unix nano
}

type MemoryGuard struct {
	log     logger.Logger
	ttl     time.Duration
	mu      sync.RWMutex
	items   map[string]memEntry
	stopCh  chan struct{}
	stopped bool
}

var _ Guard = (*MemoryGuard)(nil)

// for one instance;
// ttl-how long a lock lives without Unlock;
// janitorEvery-how often expired locks are dropped; 0 -> don't run collector
func NewMemoryGuard(log logger.Logger, ttl, janitorEvery time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	m := &MemoryGuard{
		log:    log,
		ttl:    ttl,
		items:  make(map[string]memEntry, 64),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

func (m *MemoryGuard) TryLock(_ context.Context, key string) (string, bool, error) {
	token, err := NewToken()
	if err != nil {
		return "", false, err
	}
	now := time.Now().UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	// held and not expired
	if e, ok := m.items[key]; ok && e.expireAt > now {
		return "", false, nil
	}

	m.items[key] = memEntry{
		token:    token,
		expireAt: now + m.ttl.Nanoseconds(),
	}

	m.log.Debugf("Locked key=%s", key)
	return token, true, nil
}

// a holder whose lock expired and was taken over releases nothing
func (m *MemoryGuard) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	e, ok := m.items[key]
	owned := ok && e.token == token
	if owned {
		delete(m.items, key)
	}
	m.mu.Unlock()

	if !owned {
		m.log.Warnf("Unlock of key=%s skipped, lock is no longer held by this token", key)
		return nil
	}

	m.log.Debugf("Unlocked key=%s", key)
	return nil
}

func (m *MemoryGuard) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			now := time.Now().UnixNano()
			m.mu.Lock()
			for k, e := range m.items {
				if e.expireAt <= now {
					m.log.Debugf("Removing expired lock: %s", k)
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close garbage collector(if running)
func (m *MemoryGuard) Close() {
	m.mu.Lock()
	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
	m.mu.Unlock()
}
