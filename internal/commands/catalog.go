// ABOUTME: Data-driven catalog mapping command names to handlers.
// ABOUTME: Lookup is case-insensitive; registration order drives help output.

package commands

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/vireonhq/vireon/internal/gateway"
)

// ErrDuplicateCommand indicates a command name is already registered.
var ErrDuplicateCommand = errors.New("duplicate command")

// Handler executes a command against an inbound event. args is the raw
// argument tail after the command name, leading whitespace trimmed. The
// returned string is sent back to the originating channel.
type Handler func(ctx context.Context, ev gateway.Event, args string) (string, error)

// Command is a single catalog entry.
type Command struct {
	Name        string
	Description string
	Elevated    bool // requires a gateway permission check before acting
	Handler     Handler
}

// Catalog is a registry of commands keyed by lowercase name.
type Catalog struct {
	mu    sync.RWMutex
	cmds  map[string]*Command
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{cmds: make(map[string]*Command)}
}

// Register adds a command to the catalog. Names are normalized to
// lowercase; registering the same name twice returns ErrDuplicateCommand.
func (c *Catalog) Register(cmd *Command) error {
	name := strings.ToLower(cmd.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cmds[name]; exists {
		return ErrDuplicateCommand
	}
	c.cmds[name] = cmd
	c.order = append(c.order, name)
	return nil
}

// Get returns the command for name, or nil if not registered.
func (c *Catalog) Get(name string) *Command {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cmds[strings.ToLower(name)]
}

// List returns all commands in registration order.
func (c *Catalog) List() []*Command {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Command, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.cmds[name])
	}
	return out
}
