// ABOUTME: Elevated moderation commands gated by gateway permissions.
// ABOUTME: Reports insufficient permission, missing target, and action failure distinctly.

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vireonhq/vireon/internal/gateway"
)

const (
	replyGuildOnly    = "That command only works inside a server."
	replyNoPermission = "You don't have permission to do that."
	replyNotFound     = "Could not find that member."
)

func (b *builtinHandlers) Kick(ctx context.Context, ev gateway.Event, args string) (string, error) {
	return b.moderate(ev, args, gateway.PermissionKick, "kick", ev.Actions.Kick)
}

func (b *builtinHandlers) Ban(ctx context.Context, ev gateway.Event, args string) (string, error) {
	return b.moderate(ev, args, gateway.PermissionBan, "ban", ev.Actions.Ban)
}

// moderate runs the shared permission-check-then-act flow for kick and ban.
// act receives (guildID, userID, reason).
func (b *builtinHandlers) moderate(ev gateway.Event, args string, perm gateway.Permission, verb string, act func(string, string, string) error) (string, error) {
	if ev.GuildID == "" {
		return replyGuildOnly, nil
	}

	target, reason := splitTarget(args)
	if target == "" {
		return fmt.Sprintf("Usage: %s%s <user> [reason]", b.prefix, verb), nil
	}

	allowed, err := ev.Actions.HasPermission(ev.Sender.ID, ev.ChannelID, perm)
	if err != nil {
		return fmt.Sprintf("Could not %s: permission check failed.", verb), nil
	}
	if !allowed {
		return replyNoPermission, nil
	}

	if err := act(ev.GuildID, target, reason); err != nil {
		if errors.Is(err, gateway.ErrTargetNotFound) {
			return replyNotFound, nil
		}
		return fmt.Sprintf("Could not %s that member: the action failed.", verb), nil
	}
	return fmt.Sprintf("Done, %s applied to <@%s>.", verb, target), nil
}

// splitTarget separates the first mention or ID from the reason tail.
// Mentions arrive as <@123> or <@!123>; bare IDs pass through untouched.
func splitTarget(args string) (target, reason string) {
	fields := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if fields[0] == "" {
		return "", ""
	}
	target = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(fields[0], "<@"), "!"), ">")
	if len(fields) == 2 {
		reason = strings.TrimSpace(fields[1])
	}
	return target, reason
}
