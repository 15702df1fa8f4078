// ABOUTME: Connector and Handle abstractions over the external chat gateway
// ABOUTME: Defines connect error taxonomy and the inbound message event shape

package gateway

import (
	"context"
	"errors"
)

// ErrInvalidCredential indicates the gateway rejected the credential.
// This failure is permanent and must not be retried.
var ErrInvalidCredential = errors.New("gateway rejected credential")

// ErrConnect indicates a transient connect failure (network error or timeout).
var ErrConnect = errors.New("gateway connect failed")

// ErrTargetNotFound indicates a moderation action referenced an unknown target.
var ErrTargetNotFound = errors.New("target not found")

// Identity is the public gateway identity of a connected bot or a message sender.
type Identity struct {
	ID       string
	Username string
}

// Permission enumerates the gateway capabilities a command handler may require.
type Permission int

const (
	PermissionKick Permission = iota
	PermissionBan
)

// Event is an inbound message delivered through a connection handle.
type Event struct {
	Sender    Identity
	Content   string
	ChannelID string
	GuildID   string
	MessageID string
	Actions   Actions
}

// Actions exposes the gateway side effects available to message handlers.
// All actions are fire-and-forget from the caller's perspective; failures are
// reported but never retried here.
type Actions interface {
	// Reply sends text to a channel.
	Reply(channelID, text string) error

	// HasPermission reports whether a user holds a permission in a channel,
	// per the gateway's own permission model.
	HasPermission(userID, channelID string, perm Permission) (bool, error)

	// Kick removes a member from a guild. Returns ErrTargetNotFound if the
	// gateway does not know the target.
	Kick(guildID, userID, reason string) error

	// Ban bans a member from a guild. Returns ErrTargetNotFound if the
	// gateway does not know the target.
	Ban(guildID, userID, reason string) error
}

// Handle is a live gateway connection for one bot credential.
type Handle interface {
	// Identity returns the bot's public gateway identity.
	Identity() Identity

	// OnMessage registers the inbound message callback. Must be called before
	// messages are expected; a handle delivers events to every registered callback.
	OnMessage(fn func(Event))

	// Disconnect closes the connection. Best-effort; safe to call once.
	Disconnect() error
}

// Connector establishes gateway connections from credentials.
type Connector interface {
	// Connect authenticates the credential and opens a live connection.
	// The attempt is bounded by ctx. Returns ErrInvalidCredential for a
	// rejected credential, or an error wrapping ErrConnect for transient
	// failures including ctx expiry.
	Connect(ctx context.Context, credential string) (Handle, error)
}
