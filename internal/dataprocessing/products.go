package dataprocessing

import (
	"context"
	"fmt"
	"math"
)

// Totals are the two headline metrics
type Totals struct {
	// Volume is the total volume in m³ rounded to 2 decimal places
	Volume float64 `json:"total_volume"`
	// Count is the number of items with a parseable volume
	Count int `json:"total_count"`
}

// Products are the data products handed to presenters
type Products struct {
	Families *Summary        `json:"families"`
	Items    *Summary        `json:"items"`
	TopN     TopNView        `json:"top_n"`
	Totals   Totals          `json:"totals"`
	Stats    PreprocessStats `json:"stats"`
}

// BuildOptions select the Top-N reduction
type BuildOptions struct {
	N         int
	OtherFrom int
}

// DefaultBuildOptions reproduces the dashboard as it has always looked
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{N: DefaultTopN, OtherFrom: OtherOffset}
}

// CorrectedBuildOptions sums "Other" from n so that no entry is counted twice
func CorrectedBuildOptions(n int) BuildOptions {
	return BuildOptions{N: n, OtherFrom: n}
}

// BuildProducts summarizes a preprocessed table. It checks ctx between
// aggregation steps.
func BuildProducts(ctx context.Context, t *Table, stats PreprocessStats, opts BuildOptions) (*Products, error) {
	if t == nil || !t.Normalized() {
		return nil, fmt.Errorf("build products: table has not been preprocessed")
	}

	items, err := Summarize(t, ColumnCompositeKey, ColumnVolumeNumeric)
	if err != nil {
		return nil, fmt.Errorf("summarize by %s: %w", ColumnCompositeKey, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	families, err := Summarize(t, ColumnFamilyName, ColumnVolumeNumeric)
	if err != nil {
		return nil, fmt.Errorf("summarize by %s: %w", ColumnFamilyName, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Products{
		Families: families,
		Items:    items,
		TopN:     TopNWithOtherFrom(items.Sums(), opts.N, opts.OtherFrom),
		Totals: Totals{
			Volume: RoundTo(items.TotalSum, 2),
			Count:  items.TotalCount,
		},
		Stats: stats,
	}, nil
}

// Analyze runs the whole pipeline on a raw table
func Analyze(ctx context.Context, t *Table, opts BuildOptions) (*Products, error) {
	normalized, stats, err := Preprocess(t)
	if err != nil {
		return nil, err
	}
	return BuildProducts(ctx, normalized, stats, opts)
}

// RoundTo rounds v half away from zero to the given number of decimals
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
