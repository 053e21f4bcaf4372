package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
	"github.com/bobmcallan/tickercal/internal/services/chart"
	"github.com/bobmcallan/tickercal/internal/services/eventsync"
)

// Reply is what a command produces, independent of the chat transport.
type Reply struct {
	Content string
	Chart   *models.Chart
	View    *chart.View
	// Delete asks for the message carrying the pressed button to be removed.
	Delete bool
}

// Handler implements the commands on top of the sync and chart services.
type Handler struct {
	sync   interfaces.SyncService
	charts interfaces.ChartService
	logger *common.Logger
}

// NewHandler creates a new command handler
func NewHandler(sync interfaces.SyncService, charts interfaces.ChartService, logger *common.Logger) *Handler {
	return &Handler{
		sync:   sync,
		charts: charts,
		logger: logger,
	}
}

// AddTicker registers ticker and publishes its earnings event.
func (h *Handler) AddTicker(ctx context.Context, guildID, ticker string) Reply {
	symbol := models.NormalizeTicker(ticker)
	change, err := h.sync.OnTickerAdded(ctx, guildID, symbol)
	if err != nil {
		return h.failure(err, guildID, symbol, "update the ticker list")
	}
	if !change.Changed {
		return Reply{Content: fmt.Sprintf("%s is already in the server's ticker list.", symbol)}
	}

	msg := fmt.Sprintf("Added %s to the server's ticker list.", symbol)
	switch {
	case change.SyncError != "":
		msg += " Its earnings event could not be published yet; the next daily sync will retry."
	case change.Events.Failed > 0:
		if change.Events.Created > 0 {
			msg += " Created " + plural(change.Events.Created, "event") + "."
		}
		msg += fmt.Sprintf(" %s could not be published; the next daily sync will retry.", plural(change.Events.Failed, "event"))
	case change.Events.Created > 0:
		msg += " Created " + plural(change.Events.Created, "event") + "."
	}
	return Reply{Content: msg}
}

// RemoveTicker unregisters ticker. Its published event stays.
func (h *Handler) RemoveTicker(ctx context.Context, guildID, ticker string) Reply {
	symbol := models.NormalizeTicker(ticker)
	change, err := h.sync.OnTickerRemoved(ctx, guildID, symbol)
	if err != nil {
		return h.failure(err, guildID, symbol, "update the ticker list")
	}
	if !change.Changed {
		return Reply{Content: fmt.Sprintf("%s is not in the server's ticker list.", symbol)}
	}
	return Reply{Content: fmt.Sprintf("Removed %s from the server's ticker list.", symbol)}
}

// TickerList shows the tracked tickers.
func (h *Handler) TickerList(ctx context.Context, guildID string) Reply {
	tickers, err := h.sync.ListTickers(ctx, guildID)
	if err != nil {
		return h.failure(err, guildID, "", "read the ticker list")
	}
	if len(tickers) == 0 {
		return Reply{Content: "No tickers have been added to this server yet."}
	}
	return Reply{Content: "Ticker list for this server: " + strings.Join(tickers, ", ")}
}

// ClearEvents deletes every earnings event the bot published.
func (h *Handler) ClearEvents(ctx context.Context, guildID string) Reply {
	res, err := h.sync.PurgeAllPublishedEvents(ctx, guildID)
	if err != nil {
		return h.failure(err, guildID, "", "read this server's events")
	}
	msg := fmt.Sprintf("Deleted %s.", plural(res.Deleted, "event"))
	if res.Failed > 0 {
		msg += fmt.Sprintf(" %d could not be deleted.", res.Failed)
	}
	return Reply{Content: msg}
}

// Chart renders a price chart with its controls.
func (h *Handler) Chart(ctx context.Context, ticker, period string) Reply {
	view := chart.NewView(ticker, period)
	return h.renderView(ctx, view)
}

// ChartAction applies a button press. handled is false for ids that do not
// belong to a chart.
func (h *Handler) ChartAction(ctx context.Context, customID string) (reply Reply, handled bool) {
	view, action, ok := chart.ParseCustomID(customID)
	if !ok {
		return Reply{}, false
	}

	next, remove, err := view.Apply(action)
	if err != nil {
		return Reply{Content: "Error: " + err.Error()}, true
	}
	if remove {
		return Reply{Delete: true}, true
	}
	return h.renderView(ctx, next), true
}

func (h *Handler) renderView(ctx context.Context, view chart.View) Reply {
	if view.Ticker == "" {
		return Reply{Content: "Please provide a ticker symbol."}
	}

	c, err := h.charts.Render(ctx, view.Ticker, view.Period)
	if err != nil {
		h.logger.Warn().Err(err).Str("ticker", view.Ticker).Str("period", view.Period).Msg("Chart failed")
		switch {
		case errors.Is(err, chart.ErrNoData):
			return Reply{Content: fmt.Sprintf("Error: No data found for ticker '%s' in period '%s'.", view.Ticker, view.Period)}
		case errors.Is(err, chart.ErrUnknownPeriod):
			return Reply{Content: fmt.Sprintf("Error: unknown period '%s'.", view.Period)}
		default:
			return Reply{Content: fmt.Sprintf("Error: could not load prices for %s. Please try again later.", view.Ticker)}
		}
	}

	return Reply{Content: c.Caption(), Chart: c, View: &view}
}

// failure maps service errors onto user-facing text. Details stay in the log.
func (h *Handler) failure(err error, guildID, ticker, action string) Reply {
	if eventsync.IsUserError(err) {
		if errors.Is(err, common.ErrInvalidTicker) {
			return Reply{Content: "Please provide a ticker symbol."}
		}
		return Reply{Content: "I can't reach this server's events. Check that I'm still a member with the Manage Events permission."}
	}

	h.logger.Error().Err(err).Str("community", guildID).Str("ticker", ticker).Msg("Command failed")
	return Reply{Content: fmt.Sprintf("Error: could not %s. Please try again later.", action)}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
