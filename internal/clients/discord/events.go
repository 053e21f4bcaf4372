package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// Compile-time interface check
var _ interfaces.EventTarget = (*guildTarget)(nil)

// guildTarget is one guild's scheduled events.
type guildTarget struct {
	guildID  string
	api      restAPI
	timeout  time.Duration
	location string
	logger   *common.Logger
}

func (g *guildTarget) CommunityID() string { return g.guildID }

func (g *guildTarget) ListEvents(ctx context.Context) ([]models.PublishedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	events, err := g.api.GuildScheduledEvents(g.guildID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, g.wrap("list events", err)
	}

	out := make([]models.PublishedEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		out = append(out, fromScheduledEvent(ev))
	}
	return out, nil
}

func (g *guildTarget) CreateEvent(ctx context.Context, draft models.EventDraft) (*models.PublishedEvent, error) {
	if draft.Location == "" {
		draft.Location = g.location
	}
	params := toScheduledEventParams(draft)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ev, err := g.api.GuildScheduledEventCreate(g.guildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return nil, g.wrap("create event "+draft.Name, err)
	}
	published := fromScheduledEvent(ev)
	return &published, nil
}

func (g *guildTarget) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.api.GuildScheduledEventDelete(g.guildID, eventID, discordgo.WithContext(ctx)); err != nil {
		return g.wrap("delete event "+eventID, err)
	}
	return nil
}

func (g *guildTarget) wrap(op string, err error) error {
	return fmt.Errorf("%w: guild %s: %s: %v", common.ErrEventPublishRejected, g.guildID, op, err)
}

// toScheduledEventParams maps a draft onto an external, guild-only event.
func toScheduledEventParams(draft models.EventDraft) *discordgo.GuildScheduledEventParams {
	start := draft.StartTime.UTC()
	end := draft.EndTime.UTC()
	if !end.After(start) {
		end = start.Add(models.EventDuration)
	}
	return &discordgo.GuildScheduledEventParams{
		Name:               draft.Name,
		Description:        draft.Description,
		ScheduledStartTime: &start,
		ScheduledEndTime:   &end,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		EntityMetadata: &discordgo.GuildScheduledEventEntityMetadata{
			Location: draft.Location,
		},
	}
}

func fromScheduledEvent(ev *discordgo.GuildScheduledEvent) models.PublishedEvent {
	out := models.PublishedEvent{
		ID:          ev.ID,
		Name:        ev.Name,
		StartTime:   ev.ScheduledStartTime,
		Description: ev.Description,
	}
	if ev.ScheduledEndTime != nil {
		out.EndTime = *ev.ScheduledEndTime
	}
	return out
}
