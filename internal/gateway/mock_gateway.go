// ABOUTME: Mock Connector, Handle, and Actions implementations for tests
// ABOUTME: Records connect attempts and delivered side effects for assertions

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockConnector implements Connector for testing. Connect attempts are counted
// per credential, and failures or delays can be injected.
type MockConnector struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
	delay    time.Duration
	handles  map[string]*MockHandle
	nextID   int
}

// NewMockConnector creates an empty mock connector.
func NewMockConnector() *MockConnector {
	return &MockConnector{
		calls:    make(map[string]int),
		failures: make(map[string]error),
		handles:  make(map[string]*MockHandle),
	}
}

// FailWith makes Connect fail with err for the given credential.
func (c *MockConnector) FailWith(credential string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[credential] = err
}

// SetDelay makes every Connect block for d (or until ctx expires).
func (c *MockConnector) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Connect records the attempt and returns a fresh MockHandle unless a failure
// is configured for the credential.
func (c *MockConnector) Connect(ctx context.Context, credential string) (Handle, error) {
	c.mu.Lock()
	c.calls[credential]++
	delay := c.delay
	failure := c.failures[credential]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrConnect, ctx.Err())
		}
	}

	if failure != nil {
		return nil, failure
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	h := &MockHandle{
		identity: Identity{
			ID:       fmt.Sprintf("mock-%d", c.nextID),
			Username: "MockBot",
		},
	}
	c.handles[credential] = h
	return h, nil
}

// ConnectCount returns how many Connect attempts were made for a credential.
func (c *MockConnector) ConnectCount(credential string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[credential]
}

// LastHandle returns the most recent handle created for a credential.
func (c *MockConnector) LastHandle(credential string) *MockHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[credential]
}

// MockHandle implements Handle for testing.
type MockHandle struct {
	identity Identity

	mu            sync.Mutex
	callbacks     []func(Event)
	disconnected  bool
	disconnectErr error
}

func (h *MockHandle) Identity() Identity {
	return h.identity
}

func (h *MockHandle) OnMessage(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, fn)
}

func (h *MockHandle) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = true
	return h.disconnectErr
}

// Disconnected reports whether Disconnect was called.
func (h *MockHandle) Disconnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnected
}

// SetDisconnectError makes Disconnect return err.
func (h *MockHandle) SetDisconnectError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectErr = err
}

// Deliver synchronously invokes every registered message callback with ev.
func (h *MockHandle) Deliver(ev Event) {
	h.mu.Lock()
	callbacks := make([]func(Event), len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(ev)
	}
}

// MockActions implements Actions for testing, recording every side effect.
type MockActions struct {
	mu      sync.Mutex
	replies []string
	kicked  []string
	banned  []string

	// Permissions maps userID to granted permissions. Users absent from the
	// map hold no permissions.
	Permissions map[string][]Permission

	// PermissionErr, KickErr, BanErr, ReplyErr inject failures.
	PermissionErr error
	KickErr       error
	BanErr        error
	ReplyErr      error
}

// NewMockActions creates a MockActions with no permissions granted.
func NewMockActions() *MockActions {
	return &MockActions{Permissions: make(map[string][]Permission)}
}

func (a *MockActions) Reply(channelID, text string) error {
	if a.ReplyErr != nil {
		return a.ReplyErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, text)
	return nil
}

func (a *MockActions) HasPermission(userID, channelID string, perm Permission) (bool, error) {
	if a.PermissionErr != nil {
		return false, a.PermissionErr
	}
	for _, p := range a.Permissions[userID] {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

func (a *MockActions) Kick(guildID, userID, reason string) error {
	if a.KickErr != nil {
		return a.KickErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kicked = append(a.kicked, userID)
	return nil
}

func (a *MockActions) Ban(guildID, userID, reason string) error {
	if a.BanErr != nil {
		return a.BanErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.banned = append(a.banned, userID)
	return nil
}

// Replies returns the texts sent through Reply.
func (a *MockActions) Replies() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.replies))
	copy(out, a.replies)
	return out
}

// Kicked returns the user ids passed to Kick.
func (a *MockActions) Kicked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.kicked))
	copy(out, a.kicked)
	return out
}

// Banned returns the user ids passed to Ban.
func (a *MockActions) Banned() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.banned))
	copy(out, a.banned)
	return out
}
