package cloudauth

import (
	"sync"
	"time"
)

// Channel is the authenticated channel produced by a credential exchange.
// It reports the token's expiry as an unauthenticated transition and tears
// down locally on SignOut.
type Channel struct {
	token string

	mu        sync.Mutex
	callbacks []func(bool)
	expiry    *time.Timer
	closed    bool
}

func newChannel(token string, expiresAt time.Time) *Channel {
	c := &Channel{token: token}
	if !expiresAt.IsZero() {
		c.expiry = time.AfterFunc(time.Until(expiresAt), c.expire)
	}
	return c
}

// OnAuthStateChange registers a callback for auth-state transitions.
// The channel starts authenticated, so only the transition to false is
// ever reported.
func (c *Channel) OnAuthStateChange(fn func(authenticated bool)) {
	c.mu.Lock()
	c.callbacks = append(c.callbacks, fn)
	c.mu.Unlock()
}

// SignOut tears the channel down locally. The access token is not revoked.
func (c *Channel) SignOut() error {
	c.mu.Lock()
	c.closed = true
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.mu.Unlock()
	return nil
}

// AccessToken returns the issued access token.
func (c *Channel) AccessToken() string { return c.token }

// expire fires when the access token's validity window lapses.
func (c *Channel) expire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	callbacks := append([]func(bool){}, c.callbacks...)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(false)
	}
}
