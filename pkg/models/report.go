package models

import "time"

// DateRange is an inclusive calendar date range.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ReportStageTotals joins a stage's catalog metadata with its totals
// over the report range.
type ReportStageTotals struct {
	Stage  StageMeta   `json:"stage"`
	Totals StageTotals `json:"totals"`
}

// ForecastPoint is one calendar-month bucket of the forecast series.
// Period is formatted YYYY-MM; months with no closing deals are
// zero-filled so the series never has gaps.
type ForecastPoint struct {
	Period        string `json:"period"`
	AmountCents   int64  `json:"amount_cents"`
	ExpectedCents int64  `json:"expected_cents"`
	Deals         int64  `json:"deals"`
}

// Velocity summarizes days-to-close for deals that reached the won
// stage. All figures are zero when no deals qualify.
type Velocity struct {
	DealsWon     int64   `json:"deals_won"`
	AvgDaysToWin float64 `json:"avg_days_to_win"`
	P50DaysToWin float64 `json:"p50_days_to_win"`
	P90DaysToWin float64 `json:"p90_days_to_win"`
}

// Report is the pipeline report over a date range.
type Report struct {
	StageTotals []ReportStageTotals `json:"stage_totals"`
	Forecast    []ForecastPoint     `json:"forecast"`
	Velocity    Velocity            `json:"velocity"`
}
