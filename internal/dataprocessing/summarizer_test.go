package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalized(t *testing.T, rows ...[]string) *Table {
	t.Helper()
	out, _, err := Preprocess(quantityTable(t, rows...))
	require.NoError(t, err)
	return out
}

func TestSummarize(t *testing.T) {
	table := normalized(t,
		[]string{"Basic Wall", "Generic - 200mm", "12.5 m³"},
		[]string{"Basic Wall", "Generic - 200mm", "7.5 m³"},
		[]string{"Basic Wall", "Exterior - Brick", "30 m³"},
		[]string{"Floor", "Concrete 250mm", "40.25 m³"},
		[]string{"Floor", "Concrete 250mm", "n/a"},
		[]string{"Door", "Single", "-"},
	)

	t.Run("by composite key", func(t *testing.T) {
		s, err := Summarize(table, ColumnCompositeKey, ColumnVolumeNumeric)
		require.NoError(t, err)

		assert.Equal(t, []CategoryTotal{
			{Category: "Floor: Concrete 250mm", Sum: 40.25, Count: 1},
			{Category: "Basic Wall: Exterior - Brick", Sum: 30, Count: 1},
			{Category: "Basic Wall: Generic - 200mm", Sum: 20, Count: 2},
			{Category: "Door: Single", Sum: 0, Count: 0},
		}, s.Categories)
		assert.Equal(t, 90.25, s.TotalSum)
		assert.Equal(t, 4, s.TotalCount)
		assert.Equal(t, ColumnCompositeKey, s.GroupKey)
		assert.Equal(t, ColumnVolumeNumeric, s.ValueKey)
	})

	t.Run("by family", func(t *testing.T) {
		s, err := Summarize(table, ColumnFamilyName, ColumnVolumeNumeric)
		require.NoError(t, err)

		assert.Equal(t, []Entry{
			{Category: "Basic Wall", Volume: 50},
			{Category: "Floor", Volume: 40.25},
			{Category: "Door", Volume: 0},
		}, s.Sums())
		assert.Equal(t, []CategoryCount{
			{Category: "Basic Wall", Count: 3},
			{Category: "Floor", Count: 1},
			{Category: "Door", Count: 0},
		}, s.Counts())
	})

	t.Run("family and composite totals agree", func(t *testing.T) {
		items, err := Summarize(table, ColumnCompositeKey, ColumnVolumeNumeric)
		require.NoError(t, err)
		families, err := Summarize(table, ColumnFamilyName, ColumnVolumeNumeric)
		require.NoError(t, err)

		assert.InDelta(t, items.TotalSum, families.TotalSum, 1e-9)
		assert.Equal(t, items.TotalCount, families.TotalCount)
	})
}

func TestSummarize_TotalsEqualCategorySums(t *testing.T) {
	table := normalized(t,
		[]string{"A", "1", "0.1"},
		[]string{"B", "1", "0.2"},
		[]string{"A", "2", "0.3"},
		[]string{"C", "1", "x"},
	)
	s, err := Summarize(table, ColumnCompositeKey, ColumnVolumeNumeric)
	require.NoError(t, err)

	var sum float64
	var count int
	for _, c := range s.Categories {
		sum += c.Sum
		count += c.Count
	}
	assert.Equal(t, sum, s.TotalSum)
	assert.Equal(t, count, s.TotalCount)
}

func TestSummarize_TiesSortByName(t *testing.T) {
	table := normalized(t,
		[]string{"Zeta", "", "5"},
		[]string{"Alpha", "", "5"},
		[]string{"Mid", "", "5"},
		[]string{"Big", "", "9"},
	)
	s, err := Summarize(table, ColumnFamilyName, ColumnVolumeNumeric)
	require.NoError(t, err)

	var names []string
	for _, c := range s.Categories {
		names = append(names, c.Category)
	}
	assert.Equal(t, []string{"Big", "Alpha", "Mid", "Zeta"}, names)
}

func TestSummarize_EmptyKeyIsACategory(t *testing.T) {
	table := normalized(t,
		[]string{"", "T", "4"},
		[]string{"F", "T", "1"},
	)
	s, err := Summarize(table, ColumnFamilyName, ColumnVolumeNumeric)
	require.NoError(t, err)
	require.Len(t, s.Categories, 2)
	assert.Equal(t, CategoryTotal{Category: "", Sum: 4, Count: 1}, s.Categories[0])

	// rows with blank names are kept, so both groupings still add up
	items, err := Summarize(table, ColumnCompositeKey, ColumnVolumeNumeric)
	require.NoError(t, err)
	assert.Equal(t, ": T", items.Categories[0].Category)
	assert.Equal(t, s.TotalSum, items.TotalSum)
}

func TestSummarize_EmptyTable(t *testing.T) {
	s, err := Summarize(normalized(t), ColumnCompositeKey, ColumnVolumeNumeric)
	require.NoError(t, err)
	assert.Empty(t, s.Categories)
	assert.Zero(t, s.TotalSum)
	assert.Zero(t, s.TotalCount)
}

func TestSummarize_UnknownColumns(t *testing.T) {
	tests := []struct {
		name     string
		table    func(*testing.T) *Table
		group    string
		value    string
		expected []string
	}{
		{
			name:     "unknown group column",
			table:    func(t *testing.T) *Table { return normalized(t) },
			group:    "Level",
			value:    ColumnVolumeNumeric,
			expected: []string{"Level"},
		},
		{
			name:     "derived column before preprocessing",
			table:    func(t *testing.T) *Table { return quantityTable(t) },
			group:    ColumnCompositeKey,
			value:    ColumnVolumeNumeric,
			expected: []string{ColumnCompositeKey, ColumnVolumeNumeric},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Summarize(tt.table(t), tt.group, tt.value)
			require.ErrorIs(t, err, ErrMissingColumn)
			assert.Equal(t, tt.expected, MissingColumns(err))
		})
	}
}

func TestSummarize_RawValueColumn(t *testing.T) {
	table := mustTable(t, []string{"Level", "Area"},
		[]string{"L1", "10 m²"},
		[]string{"L1", "5 m²"},
		[]string{"L2", "1 m²"},
	)
	s, err := Summarize(table, "Level", "Area")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Category: "L1", Volume: 15}, {Category: "L2", Volume: 1}}, s.Sums())
}
