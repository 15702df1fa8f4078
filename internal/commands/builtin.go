// ABOUTME: Built-in chat commands that ship with every hosted bot.
// ABOUTME: Fun commands plus help; moderation commands live in moderation.go.

package commands

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/vireonhq/vireon/internal/gateway"
)

var eightBallAnswers = []string{
	"It is certain.",
	"Without a doubt.",
	"Yes, definitely.",
	"Signs point to yes.",
	"Ask again later.",
	"Better not tell you now.",
	"Don't count on it.",
	"My sources say no.",
	"Outlook not so good.",
	"Very doubtful.",
}

// NewDefaultCatalog builds the catalog every hosted bot starts with:
// the fun commands, help, and the elevated moderation commands.
func NewDefaultCatalog(prefix string) *Catalog {
	c := NewCatalog()
	b := &builtinHandlers{catalog: c, prefix: prefix}

	for _, cmd := range []*Command{
		{Name: "ping", Description: "Check that the bot is alive", Handler: b.Ping},
		{Name: "coinflip", Description: "Flip a coin", Handler: b.Coinflip},
		{Name: "roll", Description: "Roll a die, optionally with a side count", Handler: b.Roll},
		{Name: "8ball", Description: "Consult the magic 8-ball", Handler: b.EightBall},
		{Name: "help", Description: "List available commands", Handler: b.Help},
		{Name: "kick", Description: "Kick a member from the server", Elevated: true, Handler: b.Kick},
		{Name: "ban", Description: "Ban a member from the server", Elevated: true, Handler: b.Ban},
	} {
		// Names are fixed at compile time, duplicates cannot happen here.
		_ = c.Register(cmd)
	}
	return c
}

type builtinHandlers struct {
	catalog *Catalog
	prefix  string
}

func (b *builtinHandlers) Ping(ctx context.Context, ev gateway.Event, args string) (string, error) {
	return "Pong!", nil
}

func (b *builtinHandlers) Coinflip(ctx context.Context, ev gateway.Event, args string) (string, error) {
	if rand.IntN(2) == 0 {
		return "Heads!", nil
	}
	return "Tails!", nil
}

func (b *builtinHandlers) Roll(ctx context.Context, ev gateway.Event, args string) (string, error) {
	sides := 6
	if args != "" {
		n, err := strconv.Atoi(strings.Fields(args)[0])
		if err != nil || n < 2 {
			return fmt.Sprintf("Usage: %sroll [sides], sides must be a number of at least 2", b.prefix), nil
		}
		sides = n
	}
	return fmt.Sprintf("You rolled a %d (1-%d)", rand.IntN(sides)+1, sides), nil
}

func (b *builtinHandlers) EightBall(ctx context.Context, ev gateway.Event, args string) (string, error) {
	if args == "" {
		return "Ask the 8-ball a question first.", nil
	}
	return eightBallAnswers[rand.IntN(len(eightBallAnswers))], nil
}

func (b *builtinHandlers) Help(ctx context.Context, ev gateway.Event, args string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, cmd := range b.catalog.List() {
		fmt.Fprintf(&sb, "%s%s - %s\n", b.prefix, cmd.Name, cmd.Description)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
