// ABOUTME: Store interface and data types for vireon-host persistence
// ABOUTME: Defines BotRecord, CommandFlag, User structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// BotStatus constants for the bots table status column
const (
	BotStatusRegistered = "registered" // Known credential, never connected in this record's lifetime
	BotStatusOnline     = "online"     // Last known state was a live gateway connection
	BotStatusOffline    = "offline"    // Explicitly stopped
)

// BotRecord is the durable record of a hosted bot. The credential is the
// primary lookup key and must never leave the store/registry layers.
type BotRecord struct {
	ID          string
	Credential  string
	OwnerID     string
	DisplayName string
	GatewayID   string
	Node        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommandFlag is a per-bot, per-command enable/disable override. A row exists
// only for commands that have been explicitly toggled at least once; absence
// means the command is enabled.
type CommandFlag struct {
	BotID   string
	Command string
	Enabled bool
}

// User represents an account that can own hosted bots.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	DisplayName  string
	CreatedAt    time.Time
}

// Store defines the interface for bot, command-flag, and user persistence
type Store interface {
	// Bot records
	UpsertBotRecord(ctx context.Context, rec *BotRecord) error
	GetBotRecord(ctx context.Context, credential string) (*BotRecord, error)
	GetBotRecordByID(ctx context.Context, id string) (*BotRecord, error)
	ListBotRecordsByOwner(ctx context.Context, ownerID string) ([]*BotRecord, error)
	ListBotRecordsByStatus(ctx context.Context, status string) ([]*BotRecord, error)
	UpdateBotStatus(ctx context.Context, credential, status string) error
	GetOwner(ctx context.Context, credential string) (string, error)

	// Command flags (keyed by credential at the interface, joined internally)
	GetCommandFlags(ctx context.Context, credential string) (map[string]bool, error)
	SetCommandFlag(ctx context.Context, credential, command string, enabled bool) error

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Close releases any resources held by the store
	Close() error
}
