package chart

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/tickercal/internal/models"
)

// Action is a button on an interactive chart message.
type Action string

const (
	ActionRefresh Action = "refresh"
	ActionYear    Action = "y"
	ActionMonth   Action = "mo"
	ActionWeek    Action = "w"
	ActionDay     Action = "d"
	ActionHour    Action = "h"
	ActionMinute  Action = "min"
	ActionDelete  Action = "delete"
)

// Button describes one control of a chart view.
type Button struct {
	Action Action
	Label  string
	Danger bool
	// Primary marks the refresh button.
	Primary bool
}

// Buttons is the control row in display order.
var Buttons = []Button{
	{Action: ActionRefresh, Label: "Refresh", Primary: true},
	{Action: ActionYear, Label: "Y"},
	{Action: ActionMonth, Label: "M"},
	{Action: ActionWeek, Label: "W"},
	{Action: ActionDay, Label: "D"},
	{Action: ActionHour, Label: "H"},
	{Action: ActionMinute, Label: "m"},
	{Action: ActionDelete, Label: "Delete", Danger: true},
}

var actionPeriods = map[Action]string{
	ActionYear:   "1y",
	ActionMonth:  "1mo",
	ActionWeek:   "5d",
	ActionDay:    "1d",
	ActionHour:   "1h",
	ActionMinute: "1m",
}

const customIDPrefix = "chart"

// View is the state of one interactive chart message. The state lives in the
// button ids, so a view survives restarts.
type View struct {
	Ticker string
	Period string
}

// NewView returns a view for ticker, defaulting the period.
func NewView(ticker, period string) View {
	if period == "" {
		period = DefaultPeriod
	}
	return View{Ticker: models.NormalizeTicker(ticker), Period: period}
}

// Apply returns the view after pressing action and whether the message should
// be deleted instead of redrawn.
func (v View) Apply(action Action) (next View, remove bool, err error) {
	switch action {
	case ActionRefresh:
		return v, false, nil
	case ActionDelete:
		return v, true, nil
	}
	period, ok := actionPeriods[action]
	if !ok {
		return v, false, fmt.Errorf("unknown chart action %q", action)
	}
	v.Period = period
	return v, false, nil
}

// CustomID encodes the view and an action as a component id.
func (v View) CustomID(action Action) string {
	return strings.Join([]string{customIDPrefix, string(action), v.Ticker, v.Period}, ":")
}

// ParseCustomID decodes an id produced by CustomID. ok is false for ids that
// do not belong to a chart view.
func ParseCustomID(id string) (view View, action Action, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] != customIDPrefix {
		return View{}, "", false
	}
	if parts[2] == "" || !ValidPeriod(parts[3]) {
		return View{}, "", false
	}
	return View{Ticker: parts[2], Period: parts[3]}, Action(parts[1]), true
}
