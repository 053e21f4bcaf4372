package bot

import (
	"io"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickercal/internal/models"
	"github.com/bobmcallan/tickercal/internal/services/chart"
)

func TestCommands(t *testing.T) {
	cmds := Commands()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
		assert.NotEmpty(t, c.Description, c.Name)
	}
	assert.Equal(t, []string{CmdAddTicker, CmdRemoveTicker, CmdTickerList, CmdClearEvents, CmdChart}, names)

	ch := cmds[4]
	require.Len(t, ch.Options, 2)
	assert.True(t, ch.Options[0].Required)
	assert.False(t, ch.Options[1].Required)
	assert.Len(t, ch.Options[1].Choices, len(chartPeriods))
}

func TestChartComponents(t *testing.T) {
	rows := chartComponents(chart.NewView("ABC", "1mo"))
	require.Len(t, rows, 2)

	var labels []string
	for _, r := range rows {
		row, ok := r.(discordgo.ActionsRow)
		require.True(t, ok)
		assert.LessOrEqual(t, len(row.Components), 5)
		for _, c := range row.Components {
			btn := c.(discordgo.Button)
			labels = append(labels, btn.Label)
			_, _, parsed := chart.ParseCustomID(btn.CustomID)
			assert.True(t, parsed, btn.CustomID)
		}
	}
	assert.Equal(t, []string{"Refresh", "Y", "M", "W", "D", "H", "m", "Delete"}, labels)
}

func TestWebhookParams(t *testing.T) {
	view := chart.NewView("ABC", "1mo")
	p := webhookParams(Reply{
		Content: "caption",
		Chart:   &models.Chart{Ticker: "ABC", PNG: []byte("img")},
		View:    &view,
	})
	assert.Equal(t, "caption", p.Content)
	require.Len(t, p.Files, 1)
	assert.Equal(t, "ABC_chart.png", p.Files[0].Name)
	data, err := io.ReadAll(p.Files[0].Reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
	assert.Len(t, p.Components, 2)

	plain := webhookParams(Reply{Content: "hi"})
	assert.Empty(t, plain.Files)
	assert.Empty(t, plain.Components)
}

func TestWebhookEdit_ClearsOldAttachments(t *testing.T) {
	e := webhookEdit(Reply{Content: "Error: nope"})
	require.NotNil(t, e.Content)
	assert.Equal(t, "Error: nope", *e.Content)
	require.NotNil(t, e.Attachments)
	assert.Empty(t, *e.Attachments)
	require.NotNil(t, e.Components)
	assert.Empty(t, *e.Components)
}
