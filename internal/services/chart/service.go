// Package chart renders ticker price charts
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// DefaultPeriod is used when no period is given.
const DefaultPeriod = "1mo"

// ErrNoData is returned when the provider has too few prices to draw a line.
var ErrNoData = errors.New("no price data")

// ErrUnknownPeriod is returned for a period outside the supported set.
var ErrUnknownPeriod = errors.New("unknown chart period")

// periodSpec describes how a period is fetched.
type periodSpec struct {
	// interval is "" for end-of-day bars, otherwise an intraday interval.
	interval string
	// lookback is how far back from now data is requested.
	lookback time.Duration
	// window trims intraday bars to the span ending at the latest bar; zero keeps all.
	window time.Duration
	// label formats the x axis.
	label string
}

var periods = map[string]periodSpec{
	"1y":  {lookback: 365 * 24 * time.Hour, label: "Jan 06"},
	"6mo": {lookback: 182 * 24 * time.Hour, label: "Jan 02"},
	"3mo": {lookback: 91 * 24 * time.Hour, label: "Jan 02"},
	"1mo": {lookback: 30 * 24 * time.Hour, label: "Jan 02"},
	"5d":  {interval: "1h", lookback: 8 * 24 * time.Hour, window: 5 * 24 * time.Hour, label: "Mon 15h"},
	"1d":  {interval: "5m", lookback: 4 * 24 * time.Hour, window: 24 * time.Hour, label: "15:04"},
	"1h":  {interval: "1m", lookback: 4 * 24 * time.Hour, window: time.Hour, label: "15:04"},
	"1m":  {interval: "1m", lookback: 4 * 24 * time.Hour, window: 15 * time.Minute, label: "15:04"},
}

// ValidPeriod reports whether period is supported.
func ValidPeriod(period string) bool {
	_, ok := periods[period]
	return ok
}

// Compile-time interface check
var _ interfaces.ChartService = (*Service)(nil)

// Service implements ChartService
type Service struct {
	client interfaces.MarketDataClient
	logger *common.Logger
	now    func() time.Time
}

// NewService creates a new chart service
func NewService(client interfaces.MarketDataClient, logger *common.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Render fetches prices for ticker over period and draws a close-price line.
func (s *Service) Render(ctx context.Context, ticker, period string) (*models.Chart, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, common.ErrInvalidTicker
	}
	if period == "" {
		period = DefaultPeriod
	}
	spec, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	points, err := s.prices(ctx, ticker, spec)
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w for ticker '%s' in period '%s'", ErrNoData, ticker, period)
	}

	png, err := RenderPriceChart(ticker, period, spec.label, points)
	if err != nil {
		return nil, err
	}

	c := &models.Chart{
		Ticker: ticker,
		Period: period,
		PNG:    png,
		Last:   points[len(points)-1].Close,
		High:   points[0].High,
		Low:    points[0].Low,
		Points: len(points),
	}
	for _, p := range points[1:] {
		if p.High > c.High {
			c.High = p.High
		}
		if p.Low < c.Low {
			c.Low = p.Low
		}
	}

	s.logger.Debug().Str("ticker", ticker).Str("period", period).Int("points", len(points)).Msg("Chart rendered")
	return c, nil
}

func (s *Service) prices(ctx context.Context, ticker string, spec periodSpec) ([]models.PricePoint, error) {
	now := s.now().UTC()
	from := now.Add(-spec.lookback)

	if spec.interval == "" {
		resp, err := s.client.GetEOD(ctx, ticker, interfaces.WithDateRange(from, now))
		if err != nil {
			return nil, fmt.Errorf("price history for %s: %w", ticker, err)
		}
		points := make([]models.PricePoint, 0, len(resp.Data))
		for _, bar := range resp.Data {
			points = append(points, models.PricePoint{Time: bar.Date, Close: bar.Close, High: bar.High, Low: bar.Low})
		}
		return points, nil
	}

	bars, err := s.client.GetIntraday(ctx, ticker, spec.interval, from, now)
	if err != nil {
		return nil, fmt.Errorf("intraday prices for %s: %w", ticker, err)
	}
	return trimWindow(bars, spec.window), nil
}

// trimWindow keeps the bars within window of the latest bar. Intraday data
// stops at the last session, so the window is anchored there rather than now.
func trimWindow(bars []models.IntradayBar, window time.Duration) []models.PricePoint {
	if len(bars) == 0 {
		return nil
	}
	last := bars[len(bars)-1].Time
	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		if window > 0 && last.Sub(bar.Time) > window {
			continue
		}
		points = append(points, models.PricePoint{Time: bar.Time, Close: bar.Close, High: bar.High, Low: bar.Low})
	}
	return points
}

// RenderPriceChart draws closing prices as a PNG line chart with the last
// value and the period high and low annotated. Needs at least 2 points.
func RenderPriceChart(ticker, period, xLabel string, points []models.PricePoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(points))
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = p.Time
		yValues[i] = p.Close
	}

	closeSeries := chart.TimeSeries{
		Name: strings.ToUpper(ticker) + " Closing Prices",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("1f77b4"),
			StrokeWidth: 2,
		},
		XValues: xValues,
		YValues: yValues,
	}

	hi, lo := extremes(points)
	extremesSeries := chart.AnnotationSeries{
		Annotations: []chart.Value2{
			{XValue: chart.TimeToFloat64(hi.Time), YValue: hi.High, Label: fmt.Sprintf("High: $%.2f", hi.High)},
			{XValue: chart.TimeToFloat64(lo.Time), YValue: lo.Low, Label: fmt.Sprintf("Low: $%.2f", lo.Low)},
		},
	}

	if xLabel == "" {
		xLabel = "Jan 02"
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s Stock Prices (%s)", strings.ToUpper(ticker), period),
		Width:  1000,
		Height: 500,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name:         "Date",
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(xLabel)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:  "Price (USD)",
			Range: yRange(lo.Low, hi.High),
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			closeSeries,
			chart.LastValueAnnotationSeries(closeSeries),
			extremesSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// extremes returns the points carrying the highest high and the lowest low.
// Bars without a high or low fall back to their close.
func extremes(points []models.PricePoint) (hi, lo models.PricePoint) {
	for i, p := range points {
		if p.High == 0 || p.High < p.Close {
			p.High = p.Close
		}
		if p.Low == 0 || p.Low > p.Close {
			p.Low = p.Close
		}
		if i == 0 || p.High > hi.High {
			hi = p
		}
		if i == 0 || p.Low < lo.Low {
			lo = p
		}
	}
	return hi, lo
}

// yRange pads [lo, hi] by 5% of its height. A flat series gets 1% of its
// value on each side (1 when the value is 0); go-chart cannot draw a
// zero-height range.
func yRange(lo, hi float64) *chart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if hi-lo <= 1e-9*math.Max(1, math.Abs(hi)) {
		pad = math.Abs(hi) * 0.01
		if pad == 0 {
			pad = 1
		}
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
