// Package marketstatus describes the exchange session for the bot presence line
package marketstatus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// NYSE full-day closures used when no holidays are configured.
var DefaultHolidays = []string{
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
	"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
	"2027-01-01", "2027-01-18", "2027-02-15", "2027-03-26", "2027-05-31",
	"2027-06-18", "2027-07-05", "2027-09-06", "2027-11-25", "2027-12-24",
}

// Compile-time interface check
var _ interfaces.MarketStatusService = (*Service)(nil)

// Service implements MarketStatusService for a single exchange session.
type Service struct {
	loc      *time.Location
	open     int // minutes after local midnight
	close    int
	holidays map[string]bool
}

// NewService builds the session from config. An unknown timezone falls back to
// UTC and bad session times to 09:30-16:00; both are logged.
func NewService(cfg common.MarketConfig, logger *common.Logger) *Service {
	s := &Service{
		loc:      time.UTC,
		open:     9*60 + 30,
		close:    16 * 60,
		holidays: make(map[string]bool),
	}

	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			logger.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown market timezone, using UTC")
		} else {
			s.loc = loc
		}
	}

	open, errOpen := parseClock(cfg.Open)
	closing, errClose := parseClock(cfg.Close)
	if errOpen == nil && errClose == nil && open < closing {
		s.open, s.close = open, closing
	} else if cfg.Open != "" || cfg.Close != "" {
		logger.Warn().Str("open", cfg.Open).Str("close", cfg.Close).Msg("Invalid market session, using 09:30-16:00")
	}

	holidays := cfg.Holidays
	if len(holidays) == 0 {
		holidays = DefaultHolidays
	}
	for _, h := range holidays {
		if _, err := time.Parse(models.DateLayout, h); err != nil {
			logger.Warn().Str("holiday", h).Msg("Ignoring invalid market holiday")
			continue
		}
		s.holidays[h] = true
	}

	return s
}

// Status returns the presence line for now, e.g. "⏳ Opens in 2h 5m".
func (s *Service) Status(now time.Time) string {
	local := now.In(s.loc)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return "📅 Market closed (weekend)"
	}
	if s.holidays[local.Format(models.DateLayout)] {
		return "📅 Market closed (holiday)"
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	openAt := midnight.Add(time.Duration(s.open) * time.Minute)
	closeAt := midnight.Add(time.Duration(s.close) * time.Minute)

	switch {
	case local.Before(openAt):
		return "⏳ Opens in " + formatCountdown(openAt.Sub(local))
	case local.Before(closeAt):
		return "⏳ Closes in " + formatCountdown(closeAt.Sub(local))
	default:
		return "📅 Market closed"
	}
}

func formatCountdown(d time.Duration) string {
	d = d.Truncate(time.Minute)
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
