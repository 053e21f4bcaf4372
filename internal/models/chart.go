package models

import (
	"fmt"
	"strings"
)

// Chart is a rendered price chart with the summary shown next to it.
type Chart struct {
	Ticker string  `json:"ticker"`
	Period string  `json:"period"`
	PNG    []byte  `json:"-"`
	Last   float64 `json:"last"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Points int     `json:"points"`
}

// Caption is the one-line summary posted with the image.
func (c *Chart) Caption() string {
	return fmt.Sprintf("%s %s - Last: $%.2f High: $%.2f Low: $%.2f",
		strings.ToUpper(c.Ticker), c.Period, c.Last, c.High, c.Low)
}

// FileName is the attachment name for the image.
func (c *Chart) FileName() string {
	return strings.ToUpper(c.Ticker) + "_chart.png"
}
