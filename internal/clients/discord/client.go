// Package discord provides the community events surface on top of discordgo
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
)

const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultEventLocation  = "Stock Market"
)

// Intents requested on the gateway. Scheduled events need no privileged intent.
const Intents = discordgo.IntentGuilds | discordgo.IntentGuildScheduledEvents

// restAPI is the subset of *discordgo.Session used for events.
type restAPI interface {
	GuildScheduledEvents(guildID string, userCount bool, options ...discordgo.RequestOption) ([]*discordgo.GuildScheduledEvent, error)
	GuildScheduledEventCreate(guildID string, event *discordgo.GuildScheduledEventParams, options ...discordgo.RequestOption) (*discordgo.GuildScheduledEvent, error)
	GuildScheduledEventDelete(guildID, eventID string, options ...discordgo.RequestOption) error
}

// Compile-time interface checks
var (
	_ interfaces.TargetResolver  = (*Client)(nil)
	_ interfaces.PresenceUpdater = (*Client)(nil)
	_ restAPI                    = (*discordgo.Session)(nil)
)

// Client owns the bot session.
type Client struct {
	session *discordgo.Session
	api     restAPI
	logger  *common.Logger

	requestTimeout time.Duration
	location       string

	// lookup reports whether the bot can reach a guild.
	lookup func(ctx context.Context, guildID string) error

	ready     chan struct{}
	readyOnce sync.Once
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithRequestTimeout bounds every REST call
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithEventLocation sets the location shown on created events
func WithEventLocation(location string) ClientOption {
	return func(c *Client) {
		if location != "" {
			c.location = location
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a bot session for token. The gateway is not opened until Open.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true

	c := newClient(session, opts...)
	c.lookup = c.lookupGuild

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		name := ""
		if r.User != nil {
			name = r.User.Username
		}
		c.logger.Info().
			Str("user", name).
			Int("guilds", len(r.Guilds)).
			Msg("Discord session ready")
		c.markReady()
	})

	return c, nil
}

func newClient(session *discordgo.Session, opts ...ClientOption) *Client {
	c := &Client{
		session:        session,
		logger:         common.NewSilentLogger(),
		requestTimeout: DefaultRequestTimeout,
		location:       DefaultEventLocation,
		ready:          make(chan struct{}),
	}
	if session != nil {
		c.api = session
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session exposes the underlying session for command handlers.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Open connects to the gateway.
func (c *Client) Open() error {
	routeLibraryLogs(c.logger)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// Ready is closed once the first Ready event arrives.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// OnSessionRestored calls fn after every Ready and Resumed event. Presence
// does not survive a new gateway session.
func (c *Client) OnSessionRestored(fn func()) {
	c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) { fn() })
	c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) { fn() })
}

func (c *Client) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// UpdateStatus sets a "Watching <status>" presence.
func (c *Client) UpdateStatus(status string) error {
	if err := c.session.UpdateWatchStatus(0, status); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// Resolve returns the events surface for a guild the bot is a member of.
func (c *Client) Resolve(ctx context.Context, communityID string) (interfaces.EventTarget, error) {
	if communityID == "" {
		return nil, fmt.Errorf("%w: empty community id", common.ErrCommunityUnresolvable)
	}
	if err := c.lookup(ctx, communityID); err != nil {
		return nil, err
	}
	return &guildTarget{
		guildID:  communityID,
		api:      c.api,
		timeout:  c.requestTimeout,
		location: c.location,
		logger:   c.logger,
	}, nil
}

// lookupGuild checks the state cache first and falls back to REST for guilds
// not yet announced on the gateway.
func (c *Client) lookupGuild(ctx context.Context, guildID string) error {
	if c.session.State != nil {
		if _, err := c.session.State.Guild(guildID); err == nil {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if _, err := c.session.Guild(guildID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: guild %s: %v", common.ErrCommunityUnresolvable, guildID, err)
	}
	return nil
}

// routeLibraryLogs sends discordgo's internal log lines through the service logger.
func routeLibraryLogs(logger *common.Logger) {
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			logger.Error().Str("source", "discordgo").Msg(msg)
		case discordgo.LogWarning:
			logger.Warn().Str("source", "discordgo").Msg(msg)
		case discordgo.LogInformational:
			logger.Info().Str("source", "discordgo").Msg(msg)
		default:
			logger.Debug().Str("source", "discordgo").Msg(msg)
		}
	}
}
