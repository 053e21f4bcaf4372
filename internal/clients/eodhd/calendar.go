package eodhd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/models"
)

// calendarRow is one entry of the /calendar/earnings "earnings" array.
type calendarRow struct {
	Code              string       `json:"code"`
	ReportDate        flexDate     `json:"report_date"`
	Date              flexDate     `json:"date"`
	BeforeAfterMarket string       `json:"before_after_market"`
	Estimate          *flexFloat64 `json:"estimate"`
}

// Keys that carry a composite list of candidate dates.
var compositeKeys = []string{"earnings_dates", "Earnings Date", "earnings_date"}

// parseEarningsCalendar classifies a calendar payload into one of the
// ProviderCalendar shapes.
func parseEarningsCalendar(raw []byte) (models.ProviderCalendar, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return models.EmptyCalendar{}, nil
	}

	// bare row array
	if trimmed[0] == '[' {
		return parseRows(trimmed)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProviderDataUnrecognized, err)
	}
	if len(obj) == 0 {
		return models.EmptyCalendar{}, nil
	}

	if rows, ok := obj["earnings"]; ok {
		return parseRows(rows)
	}

	for _, key := range compositeKeys {
		if list, ok := obj[key]; ok {
			return parseComposite(list)
		}
	}

	return nil, fmt.Errorf("%w: no earnings field in response", common.ErrProviderDataUnrecognized)
}

func parseRows(raw json.RawMessage) (models.ProviderCalendar, error) {
	if isNull(raw) {
		return models.EmptyCalendar{}, nil
	}

	var rows []calendarRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: earnings rows: %v", common.ErrProviderDataUnrecognized, err)
	}
	if len(rows) == 0 {
		return models.EmptyCalendar{}, nil
	}

	cal := models.TabularCalendar{Rows: make([]models.CalendarRow, 0, len(rows))}
	for _, r := range rows {
		if r.ReportDate.IsZero() {
			continue
		}
		row := models.CalendarRow{
			Code:              r.Code,
			ReportDate:        r.ReportDate.Time,
			PeriodEnd:         r.Date.Time,
			BeforeAfterMarket: r.BeforeAfterMarket,
		}
		if r.Estimate != nil {
			v := float64(*r.Estimate)
			row.Estimate = &v
		}
		cal.Rows = append(cal.Rows, row)
	}

	if len(cal.Rows) == 0 {
		return nil, fmt.Errorf("%w: %d rows without a report date", common.ErrProviderDataUnrecognized, len(rows))
	}
	return cal, nil
}

func parseComposite(raw json.RawMessage) (models.ProviderCalendar, error) {
	if isNull(raw) {
		return models.EmptyCalendar{}, nil
	}

	var dates []flexDate
	if err := json.Unmarshal(raw, &dates); err != nil {
		// a single date instead of a list
		var single flexDate
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("%w: earnings dates: %v", common.ErrProviderDataUnrecognized, err)
		}
		dates = []flexDate{single}
	}

	cal := models.CompositeCalendar{Dates: make([]time.Time, 0, len(dates))}
	for _, d := range dates {
		if !d.IsZero() {
			cal.Dates = append(cal.Dates, d.Time)
		}
	}
	if len(cal.Dates) == 0 {
		return models.EmptyCalendar{}, nil
	}
	return cal, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// flexDate accepts "2006-01-02", RFC 3339, "2006-01-02 15:04:05" or a unix
// timestamp in seconds or milliseconds. Empty, null and unparseable strings
// stay zero so one bad row does not discard the rest.
type flexDate struct {
	time.Time
}

var dateLayouts = []string{models.DateLayout, time.RFC3339, "2006-01-02 15:04:05"}

func (d *flexDate) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				d.Time = t.UTC()
				return nil
			}
		}
		return nil
	}

	n, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into date", string(data))
	}
	if n > 1e12 {
		d.Time = time.UnixMilli(n).UTC()
	} else {
		d.Time = time.Unix(n, 0).UTC()
	}
	return nil
}
