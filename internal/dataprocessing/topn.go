package dataprocessing

const (
	// DefaultTopN is the number of categories shown on the dashboard
	DefaultTopN = 20
	// OtherOffset is the index from which the "Other" bucket is summed,
	// independent of n
	OtherOffset = 10

	OtherCategory = "Other"

	LabelCategory = "Category"
	LabelVolume   = "Volume"
)

// TopNView is the reduced category list: up to N entries followed by the
// "Other" entry.
type TopNView struct {
	Entries       []Entry `json:"entries"`
	N             int     `json:"n"`
	OtherFrom     int     `json:"other_from"`
	CategoryLabel string  `json:"category_label"`
	VolumeLabel   string  `json:"volume_label"`
}

// TopNWithOther keeps the first n sums and appends "Other" summed from
// OtherOffset onward. When there are more than OtherOffset categories and n
// is larger than OtherOffset, entries OtherOffset..n-1 appear both on their
// own and inside "Other".
func TopNWithOther(sums []Entry, n int) TopNView {
	return TopNWithOtherFrom(sums, n, OtherOffset)
}

// TopNWithOtherFrom keeps the first n sums and appends "Other" summed from
// index from onward. from == n gives a remainder with no overlap. Negative
// n or from count as 0. "Other" is always present, with 0 when nothing is
// left to sum.
func TopNWithOtherFrom(sums []Entry, n, from int) TopNView {
	n = max(n, 0)
	from = max(from, 0)
	keep := min(n, len(sums))

	entries := make([]Entry, 0, keep+1)
	entries = append(entries, sums[:keep]...)

	var other float64
	for i := from; i < len(sums); i++ {
		other += sums[i].Volume
	}
	entries = append(entries, Entry{Category: OtherCategory, Volume: other})

	return TopNView{
		Entries:       entries,
		N:             n,
		OtherFrom:     from,
		CategoryLabel: LabelCategory,
		VolumeLabel:   LabelVolume,
	}
}

// Top returns the entries before "Other"
func (v TopNView) Top() []Entry {
	if len(v.Entries) == 0 {
		return nil
	}
	return v.Entries[:len(v.Entries)-1]
}

// Other returns the "Other" entry
func (v TopNView) Other() Entry {
	if len(v.Entries) == 0 {
		return Entry{Category: OtherCategory}
	}
	return v.Entries[len(v.Entries)-1]
}

// DisplayedTotal sums every entry including "Other". It exceeds the true
// total by the overlapping entries when OverlapCount is positive.
func (v TopNView) DisplayedTotal() float64 {
	var total float64
	for _, e := range v.Entries {
		total += e.Volume
	}
	return total
}

// OverlapCount is the number of entries counted both individually and in
// "Other"
func (v TopNView) OverlapCount() int {
	return max(len(v.Top())-v.OtherFrom, 0)
}
