package bankfeed

import (
	"sync"
	"time"
)

// AccountCache remembers the bank account id until ExpiresAt
type AccountCache struct {
	mu        sync.Mutex
	accountID string
	ExpiresAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewAccountCache creates an empty cache keeping entries for ttl
func NewAccountCache(ttl time.Duration, now func() time.Time) *AccountCache {
	if now == nil {
		now = time.Now
	}
	return &AccountCache{ttl: ttl, now: now}
}

// Get returns the cached account id while it is fresh
func (c *AccountCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accountID == "" || !c.now().Before(c.ExpiresAt) {
		return "", false
	}
	return c.accountID, true
}

// Put stores the account id and restarts the freshness window
func (c *AccountCache) Put(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accountID = accountID
	c.ExpiresAt = c.now().Add(c.ttl)
}
