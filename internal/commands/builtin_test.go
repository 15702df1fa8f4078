// ABOUTME: Tests for the built-in fun and moderation commands.
// ABOUTME: Validates reply shapes and the distinct moderation failure reports.

package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vireonhq/vireon/internal/gateway"
)

func dispatchDefault(t *testing.T, ev gateway.Event) string {
	t.Helper()
	router := NewRouter(RouterConfig{
		Catalog: NewDefaultCatalog("!"),
		Flags:   &fixedFlags{},
		Prefix:  "!",
	})
	reply, handled := router.Dispatch(context.Background(), "cred-1", ev)
	if !handled {
		t.Fatalf("event %q was not handled", ev.Content)
	}
	return reply
}

func TestPing(t *testing.T) {
	if reply := dispatchDefault(t, event("!ping")); reply != "Pong!" {
		t.Errorf("reply = %q", reply)
	}
}

func TestCoinflip(t *testing.T) {
	reply := dispatchDefault(t, event("!coinflip"))
	if reply != "Heads!" && reply != "Tails!" {
		t.Errorf("reply = %q", reply)
	}
}

func TestRoll(t *testing.T) {
	t.Run("default six sides", func(t *testing.T) {
		reply := dispatchDefault(t, event("!roll"))
		if !strings.HasSuffix(reply, "(1-6)") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("custom side count", func(t *testing.T) {
		reply := dispatchDefault(t, event("!roll 20"))
		if !strings.HasSuffix(reply, "(1-20)") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("bad side count replies with usage", func(t *testing.T) {
		for _, content := range []string{"!roll zero", "!roll 1", "!roll -3"} {
			reply := dispatchDefault(t, event(content))
			if !strings.Contains(reply, "Usage") {
				t.Errorf("content %q: reply = %q", content, reply)
			}
		}
	})
}

func TestEightBall(t *testing.T) {
	t.Run("needs a question", func(t *testing.T) {
		reply := dispatchDefault(t, event("!8ball"))
		if !strings.Contains(reply, "question") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("answers from the fixed set", func(t *testing.T) {
		reply := dispatchDefault(t, event("!8ball will it work?"))
		found := false
		for _, answer := range eightBallAnswers {
			if reply == answer {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("reply %q is not a known answer", reply)
		}
	})
}

func TestHelp(t *testing.T) {
	reply := dispatchDefault(t, event("!help"))
	for _, name := range []string{"!ping", "!coinflip", "!roll", "!8ball", "!kick", "!ban"} {
		if !strings.Contains(reply, name) {
			t.Errorf("help output missing %s:\n%s", name, reply)
		}
	}
}

func moderationEvent(content string, actions gateway.Actions) gateway.Event {
	ev := event(content)
	ev.GuildID = "guild-1"
	ev.Actions = actions
	return ev
}

func TestKick(t *testing.T) {
	t.Run("kicks with permission", func(t *testing.T) {
		actions := gateway.NewMockActions()
		actions.Permissions["user-1"] = []gateway.Permission{gateway.PermissionKick}

		reply := dispatchDefault(t, moderationEvent("!kick <@42> spamming", actions))

		if !strings.Contains(reply, "kick applied") {
			t.Errorf("reply = %q", reply)
		}
		kicked := actions.Kicked()
		if len(kicked) != 1 || kicked[0] != "42" {
			t.Errorf("kicked = %v", kicked)
		}
	})

	t.Run("insufficient permission", func(t *testing.T) {
		actions := gateway.NewMockActions()

		reply := dispatchDefault(t, moderationEvent("!kick 42", actions))

		if reply != replyNoPermission {
			t.Errorf("reply = %q", reply)
		}
		if len(actions.Kicked()) != 0 {
			t.Error("kick must not run without permission")
		}
	})

	t.Run("target not found", func(t *testing.T) {
		actions := gateway.NewMockActions()
		actions.Permissions["user-1"] = []gateway.Permission{gateway.PermissionKick}
		actions.KickErr = gateway.ErrTargetNotFound

		reply := dispatchDefault(t, moderationEvent("!kick 42", actions))
		if reply != replyNotFound {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("action failure reported distinctly", func(t *testing.T) {
		actions := gateway.NewMockActions()
		actions.Permissions["user-1"] = []gateway.Permission{gateway.PermissionKick}
		actions.KickErr = errors.New("api error")

		reply := dispatchDefault(t, moderationEvent("!kick 42", actions))
		if !strings.Contains(reply, "action failed") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("guild only", func(t *testing.T) {
		ev := event("!kick 42")
		ev.Actions = gateway.NewMockActions()

		reply := dispatchDefault(t, ev)
		if reply != replyGuildOnly {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("missing target replies with usage", func(t *testing.T) {
		actions := gateway.NewMockActions()
		actions.Permissions["user-1"] = []gateway.Permission{gateway.PermissionKick}

		reply := dispatchDefault(t, moderationEvent("!kick", actions))
		if !strings.Contains(reply, "Usage") {
			t.Errorf("reply = %q", reply)
		}
	})
}

func TestBan(t *testing.T) {
	actions := gateway.NewMockActions()
	actions.Permissions["user-1"] = []gateway.Permission{gateway.PermissionBan}

	reply := dispatchDefault(t, moderationEvent("!ban <@!99> raiding", actions))

	if !strings.Contains(reply, "ban applied") {
		t.Errorf("reply = %q", reply)
	}
	banned := actions.Banned()
	if len(banned) != 1 || banned[0] != "99" {
		t.Errorf("banned = %v", banned)
	}
}

func TestSplitTarget(t *testing.T) {
	cases := []struct {
		args, target, reason string
	}{
		{"42", "42", ""},
		{"<@42> spamming a lot", "42", "spamming a lot"},
		{"<@!42>", "42", ""},
		{"", "", ""},
		{"  <@42>  too many caps ", "42", "too many caps"},
	}
	for _, tc := range cases {
		target, reason := splitTarget(tc.args)
		if target != tc.target || reason != tc.reason {
			t.Errorf("splitTarget(%q) = (%q, %q), want (%q, %q)", tc.args, target, reason, tc.target, tc.reason)
		}
	}
}
