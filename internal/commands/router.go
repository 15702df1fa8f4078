// ABOUTME: Routes prefixed chat messages to catalog handlers.
// ABOUTME: Gates each dispatch through the per-bot command flag table.

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vireonhq/vireon/internal/gateway"
)

const replyDisabled = "That command is disabled for this bot."

// FlagSource looks up the per-bot command enablement table. A command
// absent from the map has not been overridden and counts as enabled.
type FlagSource interface {
	GetCommandFlags(ctx context.Context, credential string) (map[string]bool, error)
}

// Router turns inbound gateway events into command replies. It owns no
// state beyond its wiring; every dispatch is a pure function of the
// event, the catalog, and the flag lookup.
type Router struct {
	catalog *Catalog
	flags   FlagSource
	prefix  string
	logger  *slog.Logger
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Catalog *Catalog
	Flags   FlagSource
	Prefix  string
	Logger  *slog.Logger
}

// NewRouter creates a Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "!"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		catalog: cfg.Catalog,
		flags:   cfg.Flags,
		prefix:  prefix,
		logger:  logger,
	}
}

// Dispatch handles one inbound event for the bot identified by
// credential. It returns the reply text and whether the event was a
// command at all. Non-prefixed messages are ordinary traffic and return
// ("", false). Handler failures never propagate to the event source;
// they become the reply text.
func (r *Router) Dispatch(ctx context.Context, credential string, ev gateway.Event) (string, bool) {
	name, args, ok := r.parse(ev.Content)
	if !ok {
		return "", false
	}

	flags, err := r.flags.GetCommandFlags(ctx, credential)
	if err != nil {
		// Treat a flag lookup failure as no overrides rather than
		// silencing the bot entirely.
		r.logger.Warn("command flag lookup failed", "command", name, "error", err)
		flags = nil
	}
	if enabled, overridden := flags[name]; overridden && !enabled {
		r.logger.Debug("command disabled", "command", name)
		return replyDisabled, true
	}

	cmd := r.catalog.Get(name)
	if cmd == nil {
		return fmt.Sprintf("Unknown command. Try %shelp for the list.", r.prefix), true
	}

	reply, err := cmd.Handler(ctx, ev, args)
	if err != nil {
		r.logger.Warn("command handler failed", "command", name, "error", err)
		return fmt.Sprintf("Command failed: %v", err), true
	}
	return reply, true
}

// parse splits content into a lowercase command name and its argument
// tail. Returns ok=false for anything that is not a prefixed command.
func (r *Router) parse(content string) (name, args string, ok bool) {
	if !strings.HasPrefix(content, r.prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, r.prefix)
	if rest == "" || rest[0] == ' ' {
		return "", "", false
	}

	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}
