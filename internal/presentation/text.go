package presentation

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"qtodash/internal/dataprocessing"
)

// TextPresenter prints the dashboard as plain text for a terminal
type TextPresenter struct {
	// Families adds the per-family volume table shown as a donut on the web
	Families bool
}

// NewTextPresenter creates a TextPresenter
func NewTextPresenter() *TextPresenter {
	return &TextPresenter{Families: true}
}

func (t *TextPresenter) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (t *TextPresenter) Present(ctx context.Context, w io.Writer, p *dataprocessing.Products) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n\n", Title)

	if t.Families {
		fmt.Fprintf(tw, "%s\n", HeaderVolumeByFamily)
		fmt.Fprintf(tw, "%s\t%s\t\n", dataprocessing.ColumnFamilyName, dataprocessing.LabelVolume)
		for _, e := range p.Families.Sums() {
			fmt.Fprintf(tw, "%s\t%s\t\n", e.Category, FormatVolume(e.Volume))
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintf(tw, "%s\n", HeaderProjectVolume)
	fmt.Fprintf(tw, "%s\t%s\t\n", LabelTotalVolume, FormatVolume(p.Totals.Volume))
	fmt.Fprintf(tw, "%s\t%d\t\n", LabelTotalCount, p.Totals.Count)
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "%s\n", HeaderSummedVolumes)
	fmt.Fprintf(tw, "%s\t%s\t\n", p.TopN.CategoryLabel, p.TopN.VolumeLabel)
	for _, e := range p.TopN.Entries {
		fmt.Fprintf(tw, "%s\t%s\t\n", e.Category, FormatVolume(e.Volume))
	}

	if p.Stats.UnparseableVolumes > 0 {
		fmt.Fprintf(tw, "\n%d of %d records had no numeric volume\n", p.Stats.UnparseableVolumes, p.Stats.Records)
	}
	return tw.Flush()
}

// FormatVolume renders v with at most two decimals and no trailing zeros
func FormatVolume(v float64) string {
	return strconv.FormatFloat(dataprocessing.RoundTo(v, 2), 'f', -1, 64)
}
