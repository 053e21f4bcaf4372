package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/models"
)

type fakeAPI struct {
	events    []*discordgo.GuildScheduledEvent
	created   []*discordgo.GuildScheduledEventParams
	deleted   []string
	listErr   error
	createErr error
	deleteErr error
	guildIDs  []string
	hadCtx    bool
}

func (f *fakeAPI) GuildScheduledEvents(guildID string, userCount bool, options ...discordgo.RequestOption) ([]*discordgo.GuildScheduledEvent, error) {
	f.guildIDs = append(f.guildIDs, guildID)
	f.hadCtx = len(options) > 0
	return f.events, f.listErr
}

func (f *fakeAPI) GuildScheduledEventCreate(guildID string, event *discordgo.GuildScheduledEventParams, options ...discordgo.RequestOption) (*discordgo.GuildScheduledEvent, error) {
	f.guildIDs = append(f.guildIDs, guildID)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, event)
	return &discordgo.GuildScheduledEvent{
		ID:                 "new-1",
		GuildID:            guildID,
		Name:               event.Name,
		Description:        event.Description,
		ScheduledStartTime: *event.ScheduledStartTime,
		ScheduledEndTime:   event.ScheduledEndTime,
	}, nil
}

func (f *fakeAPI) GuildScheduledEventDelete(guildID, eventID string, options ...discordgo.RequestOption) error {
	f.guildIDs = append(f.guildIDs, guildID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newTestClient(api *fakeAPI, known ...string) *Client {
	c := newClient(nil, WithLogger(common.NewSilentLogger()))
	c.api = api
	c.lookup = func(ctx context.Context, guildID string) error {
		for _, k := range known {
			if k == guildID {
				return nil
			}
		}
		return common.ErrCommunityUnresolvable
	}
	return c
}

var start = time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	c := newTestClient(&fakeAPI{}, "g1")

	target, err := c.Resolve(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", target.CommunityID())

	_, err = c.Resolve(context.Background(), "g2")
	assert.ErrorIs(t, err, common.ErrCommunityUnresolvable)

	_, err = c.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrCommunityUnresolvable)
}

func TestListEvents_MapsScheduledEvents(t *testing.T) {
	end := start.Add(time.Hour)
	api := &fakeAPI{events: []*discordgo.GuildScheduledEvent{
		{ID: "1", Name: "Earnings: AAPL", ScheduledStartTime: start, ScheduledEndTime: &end, Description: "d"},
		nil,
		{ID: "2", Name: "Voice hangout", ScheduledStartTime: start},
	}}
	target, err := newTestClient(api, "g1").Resolve(context.Background(), "g1")
	require.NoError(t, err)

	events, err := target.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.PublishedEvent{ID: "1", Name: "Earnings: AAPL", StartTime: start, EndTime: end, Description: "d"}, events[0])
	assert.True(t, events[0].Owned())
	assert.False(t, events[1].Owned())
	assert.True(t, events[1].EndTime.IsZero())
	assert.True(t, api.hadCtx)
}

func TestListEvents_ErrorIsRejected(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("HTTP 403 Forbidden")}
	target, err := newTestClient(api, "g1").Resolve(context.Background(), "g1")
	require.NoError(t, err)

	_, err = target.ListEvents(context.Background())
	assert.ErrorIs(t, err, common.ErrEventPublishRejected)
}

func TestCreateEvent_ExternalGuildOnly(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(api, "g1")
	c.location = "Stock Market"
	target, err := c.Resolve(context.Background(), "g1")
	require.NoError(t, err)

	ev, err := target.CreateEvent(context.Background(), models.EventDraft{
		Name:        "Earnings: AAPL",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Description: "Earnings reports for AAPL on: 2024-04-20",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", ev.ID)
	assert.Equal(t, time.Hour, ev.EndTime.Sub(ev.StartTime))

	require.Len(t, api.created, 1)
	p := api.created[0]
	assert.Equal(t, discordgo.GuildScheduledEventEntityTypeExternal, p.EntityType)
	assert.Equal(t, discordgo.GuildScheduledEventPrivacyLevelGuildOnly, p.PrivacyLevel)
	require.NotNil(t, p.EntityMetadata)
	assert.Equal(t, "Stock Market", p.EntityMetadata.Location)
	assert.Equal(t, "Earnings reports for AAPL on: 2024-04-20", p.Description)
}

func TestCreateEvent_ErrorIsRejected(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("HTTP 400 Bad Request")}
	target, err := newTestClient(api, "g1").Resolve(context.Background(), "g1")
	require.NoError(t, err)

	_, err = target.CreateEvent(context.Background(), models.EventDraft{Name: "Earnings: AAPL", StartTime: start})
	assert.ErrorIs(t, err, common.ErrEventPublishRejected)
}

func TestDeleteEvent(t *testing.T) {
	api := &fakeAPI{}
	target, err := newTestClient(api, "g1").Resolve(context.Background(), "g1")
	require.NoError(t, err)

	require.NoError(t, target.DeleteEvent(context.Background(), "ev-9"))
	assert.Equal(t, []string{"ev-9"}, api.deleted)

	api.deleteErr = errors.New("HTTP 404 Not Found")
	assert.ErrorIs(t, target.DeleteEvent(context.Background(), "ev-10"), common.ErrEventPublishRejected)
}

func TestToScheduledEventParams_FixesZeroLength(t *testing.T) {
	p := toScheduledEventParams(models.EventDraft{Name: "Earnings: X", StartTime: start, EndTime: start, Location: "Stock Market"})
	require.NotNil(t, p.ScheduledEndTime)
	assert.Equal(t, start.Add(models.EventDuration), *p.ScheduledEndTime)
}

func TestReadyGate(t *testing.T) {
	c := newClient(nil)
	select {
	case <-c.Ready():
		t.Fatal("ready before any Ready event")
	default:
	}

	c.markReady()
	c.markReady()

	select {
	case <-c.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready gate not released")
	}
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}
