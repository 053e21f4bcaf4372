package bot

import (
	"bytes"
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/tickercal/internal/common"
)

// commandTimeout bounds one command. Interaction tokens stay valid for 15 minutes.
const commandTimeout = 2 * time.Minute

// Bot wires the handler to a discordgo session.
type Bot struct {
	session *discordgo.Session
	handler *Handler
	logger  *common.Logger
	guilds  []string
	ctx     context.Context
}

// New creates a bot. guilds receive a per-guild command registration in
// addition to the global one, so command changes show up there immediately.
func New(session *discordgo.Session, handler *Handler, guilds []string, logger *common.Logger) *Bot {
	return &Bot{
		session: session,
		handler: handler,
		logger:  logger,
		guilds:  guilds,
		ctx:     context.Background(),
	}
}

// Attach installs the Ready and interaction handlers. Call before the gateway
// is opened. ctx bounds every command run.
func (b *Bot) Attach(ctx context.Context) {
	b.ctx = ctx
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.registerCommands(r.Application)
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.onInteraction(i)
	})
}

func (b *Bot) registerCommands(app *discordgo.Application) {
	appID := ""
	if app != nil {
		appID = app.ID
	}
	if appID == "" && b.session.State != nil && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}
	if appID == "" {
		b.logger.Error().Msg("Cannot register commands: application id unknown")
		return
	}

	cmds := Commands()
	scopes := append([]string{""}, b.guilds...)
	for _, guildID := range scopes {
		if _, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
			b.logger.Error().Err(err).Str("community", guildID).Msg("Failed to register slash commands")
			continue
		}
	}
	b.logger.Info().Int("commands", len(cmds)).Int("guilds", len(b.guilds)).Msg("Slash commands synced")
}

func (b *Bot) onInteraction(i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(i)
	case discordgo.InteractionMessageComponent:
		b.onComponent(i)
	}
}

func (b *Bot) onCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	if i.GuildID == "" {
		b.respondNow(i, "This command can only be used in a server.")
		return
	}

	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.logger.Warn().Err(err).Str("command", data.Name).Msg("Failed to acknowledge command")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	opts := optionMap(data.Options)
	log := b.logger.Info().Str("command", data.Name).Str("community", i.GuildID)

	var reply Reply
	switch data.Name {
	case CmdAddTicker:
		reply = b.handler.AddTicker(ctx, i.GuildID, opts["ticker"])
	case CmdRemoveTicker:
		reply = b.handler.RemoveTicker(ctx, i.GuildID, opts["ticker"])
	case CmdTickerList:
		reply = b.handler.TickerList(ctx, i.GuildID)
	case CmdClearEvents:
		reply = b.handler.ClearEvents(ctx, i.GuildID)
	case CmdChart:
		reply = b.handler.Chart(ctx, opts["ticker"], opts["period"])
	default:
		reply = Reply{Content: "Unknown command."}
	}
	log.Str("ticker", opts["ticker"]).Msg("Command handled")

	if _, err := b.session.FollowupMessageCreate(i.Interaction, true, webhookParams(reply)); err != nil {
		b.logger.Warn().Err(err).Str("command", data.Name).Msg("Failed to send command reply")
	}
}

func (b *Bot) onComponent(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		b.logger.Warn().Err(err).Str("custom_id", customID).Msg("Failed to acknowledge button")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	reply, handled := b.handler.ChartAction(ctx, customID)
	if !handled {
		b.logger.Debug().Str("custom_id", customID).Msg("Ignoring unknown component")
		return
	}

	if reply.Delete {
		if i.Message == nil {
			return
		}
		if err := b.session.ChannelMessageDelete(i.ChannelID, i.Message.ID, discordgo.WithContext(ctx)); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to delete chart message")
		}
		return
	}

	if _, err := b.session.InteractionResponseEdit(i.Interaction, webhookEdit(reply), discordgo.WithContext(ctx)); err != nil {
		b.logger.Warn().Err(err).Str("custom_id", customID).Msg("Failed to update chart message")
	}
}

func (b *Bot) respondNow(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to respond")
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := make(map[string]string, len(options))
	for _, o := range options {
		if o.Type == discordgo.ApplicationCommandOptionString {
			out[o.Name] = o.StringValue()
		}
	}
	return out
}

// webhookParams builds a new message for a reply.
func webhookParams(r Reply) *discordgo.WebhookParams {
	p := &discordgo.WebhookParams{Content: r.Content}
	if r.Chart != nil && len(r.Chart.PNG) > 0 {
		p.Files = []*discordgo.File{chartFile(r)}
	}
	if r.View != nil {
		p.Components = chartComponents(*r.View)
	}
	return p
}

// webhookEdit replaces the content, image and controls of an existing message.
func webhookEdit(r Reply) *discordgo.WebhookEdit {
	content := r.Content
	components := []discordgo.MessageComponent{}
	if r.View != nil {
		components = chartComponents(*r.View)
	}
	attachments := []*discordgo.MessageAttachment{}

	e := &discordgo.WebhookEdit{
		Content:     &content,
		Components:  &components,
		Attachments: &attachments,
	}
	if r.Chart != nil && len(r.Chart.PNG) > 0 {
		e.Files = []*discordgo.File{chartFile(r)}
	}
	return e
}

func chartFile(r Reply) *discordgo.File {
	return &discordgo.File{
		Name:        r.Chart.FileName(),
		ContentType: "image/png",
		Reader:      bytes.NewReader(r.Chart.PNG),
	}
}
