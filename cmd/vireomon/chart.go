// threadCountChart renders the live-thread-count series on the "Thread
// Count" tab using ntcharts' braille time-series line chart. jdiag's
// memory_tab.go drives the equivalent heap-usage graph through a local
// utils.Chart wrapper that wasn't available to read alongside this
// repo, so this wrapper talks to
// github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart
// directly, using its documented Push/SetStyle/DrawBraille/View surface
// rather than a copied intermediary type.
package main

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
)

type threadCountChart struct {
	chart timeserieslinechart.Model
}

func newThreadCountChart(width, height int) *threadCountChart {
	if width < 10 {
		width = 10
	}
	if height < 4 {
		height = 4
	}
	c := timeserieslinechart.New(width, height)
	c.SetStyle(infoStyle)
	return &threadCountChart{chart: c}
}

func (t *threadCountChart) resize(width, height int) {
	if width < 10 || height < 4 {
		return
	}
	t.chart.Resize(width, height)
}

func (t *threadCountChart) push(at time.Time, value float64) {
	t.chart.Push(timeserieslinechart.TimePoint{Time: at, Value: value})
}

func (t *threadCountChart) view() string {
	t.chart.DrawBraille()
	return t.chart.View()
}
