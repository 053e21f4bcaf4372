// Package bot handles slash commands and chart buttons
package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/tickercal/internal/services/chart"
)

// Command names
const (
	CmdAddTicker    = "add_ticker"
	CmdRemoveTicker = "remove_ticker"
	CmdTickerList   = "ticker_list"
	CmdClearEvents  = "clear_events"
	CmdChart        = "ch"
)

var manageEvents int64 = discordgo.PermissionManageEvents

// chartPeriods are offered as choices on the chart command, in display order.
var chartPeriods = []string{"1m", "1h", "1d", "5d", "1mo", "3mo", "6mo", "1y"}

// Commands returns the application commands registered by the bot.
func Commands() []*discordgo.ApplicationCommand {
	tickerOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "ticker",
		Description: "Stock ticker symbol, e.g. AAPL",
		Required:    true,
		MaxLength:   16,
	}

	periodChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(chartPeriods))
	for _, p := range chartPeriods {
		if !chart.ValidPeriod(p) {
			continue
		}
		periodChoices = append(periodChoices, &discordgo.ApplicationCommandOptionChoice{Name: p, Value: p})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        CmdAddTicker,
			Description: "Add a stock ticker to the server's list",
			Options:     []*discordgo.ApplicationCommandOption{tickerOption},
		},
		{
			Name:        CmdRemoveTicker,
			Description: "Remove a stock ticker from the server's list",
			Options:     []*discordgo.ApplicationCommandOption{tickerOption},
		},
		{
			Name:        CmdTickerList,
			Description: "Show the currently added ticker list for this server",
		},
		{
			Name:                     CmdClearEvents,
			Description:              "Clear all events in this server made by the bot",
			DefaultMemberPermissions: &manageEvents,
		},
		{
			Name:        CmdChart,
			Description: "Show a stock price chart",
			Options: []*discordgo.ApplicationCommandOption{
				tickerOption,
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "Chart period (default 1mo)",
					Choices:     periodChoices,
				},
			},
		},
	}
}

// chartComponents renders the control rows for a chart view. A row holds at
// most five buttons.
func chartComponents(view chart.View) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var current []discordgo.MessageComponent

	for _, b := range chart.Buttons {
		style := discordgo.SecondaryButton
		switch {
		case b.Primary:
			style = discordgo.PrimaryButton
		case b.Danger:
			style = discordgo.DangerButton
		}
		current = append(current, discordgo.Button{
			Label:    b.Label,
			Style:    style,
			CustomID: view.CustomID(b.Action),
		})
		if len(current) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: current})
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: current})
	}
	return rows
}
