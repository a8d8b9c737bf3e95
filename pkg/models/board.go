package models

// StageTotals holds one stage's grouped aggregates. ExpectedCents is
// the probability-weighted revenue: sum(amount) * probability / 100,
// integer-truncated.
type StageTotals struct {
	Count         int64 `json:"count"`
	AmountCents   int64 `json:"amount_cents"`
	ExpectedCents int64 `json:"expected_cents"`
}

// BoardColumn is one pipeline board column: stage metadata, that
// stage's totals and a capped deal listing.
type BoardColumn struct {
	Stage  StageMeta   `json:"stage"`
	Totals StageTotals `json:"totals"`
	Deals  []BoardDeal `json:"deals"`
}

// Board is the full pipeline board view. Board-level totals are summed
// across all columns, independent of the per-column deal caps.
type Board struct {
	Columns            []BoardColumn `json:"columns"`
	TotalCount         int64         `json:"total_count"`
	TotalAmountCents   int64         `json:"total_amount_cents"`
	TotalExpectedCents int64         `json:"total_expected_cents"`
}
