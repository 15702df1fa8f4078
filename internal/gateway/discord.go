// ABOUTME: Discord implementation of the gateway Connector using discordgo
// ABOUTME: Validates tokens over REST before opening the websocket session

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// defaultIntents covers guild traffic, DMs, and message content, which the
// command router needs to see raw text.
const defaultIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

// DiscordConnector implements Connector against the Discord gateway.
type DiscordConnector struct {
	logger  *slog.Logger
	intents discordgo.Intent
}

// NewDiscordConnector creates a Discord connector with default intents.
func NewDiscordConnector(logger *slog.Logger) *DiscordConnector {
	return &DiscordConnector{
		logger:  logger.With("component", "discord"),
		intents: defaultIntents,
	}
}

// Connect authenticates the credential and opens a gateway session.
// The token is validated with a REST identity call first so that a rejected
// credential is classified as ErrInvalidCredential rather than a generic
// websocket close.
func (c *DiscordConnector) Connect(ctx context.Context, credential string) (Handle, error) {
	token := credential
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	session, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("%w: creating session: %v", ErrConnect, err)
	}
	session.Identify.Intents = c.intents

	me, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("%w: identity check: %v", ErrConnect, err)
	}

	// Open does not take a context; bound it manually so a hung handshake
	// cannot stall the caller past its deadline.
	opened := make(chan error, 1)
	go func() {
		opened <- session.Open()
	}()

	select {
	case err := <-opened:
		if err != nil {
			return nil, fmt.Errorf("%w: opening gateway: %v", ErrConnect, err)
		}
	case <-ctx.Done():
		// The handshake may still complete in the background; close the
		// session once it does so the connection is not leaked.
		go func() {
			if err := <-opened; err == nil {
				session.Close()
			}
		}()
		return nil, fmt.Errorf("%w: %v", ErrConnect, ctx.Err())
	}

	c.logger.Info("gateway session opened",
		"bot_id", me.ID,
		"username", me.Username,
	)

	return &discordHandle{
		session:  session,
		identity: Identity{ID: me.ID, Username: me.Username},
	}, nil
}

// discordHandle wraps an open discordgo session.
type discordHandle struct {
	session  *discordgo.Session
	identity Identity
}

func (h *discordHandle) Identity() Identity {
	return h.identity
}

// OnMessage registers fn for MessageCreate events.
func (h *discordHandle) OnMessage(fn func(Event)) {
	h.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		fn(Event{
			Sender:    Identity{ID: m.Author.ID, Username: m.Author.Username},
			Content:   m.Content,
			ChannelID: m.ChannelID,
			GuildID:   m.GuildID,
			MessageID: m.ID,
			Actions:   &discordActions{session: s},
		})
	})
}

func (h *discordHandle) Disconnect() error {
	return h.session.Close()
}

// discordActions implements Actions against an open session.
type discordActions struct {
	session *discordgo.Session
}

func (a *discordActions) Reply(channelID, text string) error {
	if _, err := a.session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}

func (a *discordActions) HasPermission(userID, channelID string, perm Permission) (bool, error) {
	perms, err := a.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, fmt.Errorf("resolving permissions: %w", err)
	}
	return perms&permissionBits(perm) != 0, nil
}

func (a *discordActions) Kick(guildID, userID, reason string) error {
	return classifyActionError(a.session.GuildMemberDeleteWithReason(guildID, userID, reason))
}

func (a *discordActions) Ban(guildID, userID, reason string) error {
	return classifyActionError(a.session.GuildBanCreateWithReason(guildID, userID, reason, 0))
}

// permissionBits maps a Permission to the Discord permission flag.
func permissionBits(perm Permission) int64 {
	switch perm {
	case PermissionKick:
		return discordgo.PermissionKickMembers
	case PermissionBan:
		return discordgo.PermissionBanMembers
	default:
		return 0
	}
}

// classifyActionError maps a 404 from the REST API to ErrTargetNotFound.
func classifyActionError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return ErrTargetNotFound
	}
	return err
}
