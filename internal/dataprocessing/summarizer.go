package dataprocessing

import "sort"

// CategoryTotal is one group of a Summary
type CategoryTotal struct {
	Category string  `json:"category"`
	Sum      float64 `json:"sum"`
	Count    int     `json:"count"`
}

// Entry pairs a category with a volume
type Entry struct {
	Category string  `json:"category"`
	Volume   float64 `json:"volume"`
}

// CategoryCount pairs a category with its item count
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Summary is a table grouped by one column with per-group sums and counts of
// another, ordered by descending sum.
type Summary struct {
	GroupKey   string          `json:"group_key"`
	ValueKey   string          `json:"value_key"`
	Categories []CategoryTotal `json:"categories"`
	TotalSum   float64         `json:"total_sum"`
	TotalCount int             `json:"total_count"`
}

// Sums returns the per-category sums in summary order
func (s *Summary) Sums() []Entry {
	out := make([]Entry, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = Entry{Category: c.Category, Volume: c.Sum}
	}
	return out
}

// Counts returns the per-category counts in summary order
func (s *Summary) Counts() []CategoryCount {
	out := make([]CategoryCount, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = CategoryCount{Category: c.Category, Count: c.Count}
	}
	return out
}

// Len returns the number of categories
func (s *Summary) Len() int {
	return len(s.Categories)
}

// Summarize groups t by groupKey and sums the valid values of valueKey.
//
// Keys are compared exactly, so "" is a category of its own. Invalid values
// add nothing to Sum or Count, but a category made only of invalid values is
// still listed with zeros. Categories are ordered by descending Sum, then by
// ascending name.
func Summarize(t *Table, groupKey, valueKey string) (*Summary, error) {
	if t == nil {
		return nil, malformedFileError(0, "no table to summarize", nil)
	}
	if missing := t.missingColumns(groupKey, valueKey); len(missing) > 0 {
		return nil, missingColumnError(missing)
	}

	index := make(map[string]int)
	categories := make([]CategoryTotal, 0)
	for _, rec := range t.Records {
		key := rec.Text(groupKey)
		i, ok := index[key]
		if !ok {
			i = len(categories)
			index[key] = i
			categories = append(categories, CategoryTotal{Category: key})
		}

		if v := rec.Number(valueKey); v.Valid {
			categories[i].Sum += v.Value
			categories[i].Count++
		}
	}

	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Sum != categories[j].Sum {
			return categories[i].Sum > categories[j].Sum
		}
		return categories[i].Category < categories[j].Category
	})

	summary := &Summary{
		GroupKey:   groupKey,
		ValueKey:   valueKey,
		Categories: categories,
	}
	for _, c := range categories {
		summary.TotalSum += c.Sum
		summary.TotalCount += c.Count
	}
	return summary, nil
}
