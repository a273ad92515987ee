package dataprocessing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformSums(n int, v float64) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{Category: fmt.Sprintf("cat%02d", i+1), Volume: v}
	}
	return out
}

func TestTopNWithOther(t *testing.T) {
	t.Run("fewer than offset categories", func(t *testing.T) {
		view := TopNWithOther([]Entry{
			{Category: "cat1", Volume: 50},
			{Category: "cat2", Volume: 30},
			{Category: "cat3", Volume: 20},
		}, DefaultTopN)

		assert.Equal(t, []Entry{
			{Category: "cat1", Volume: 50},
			{Category: "cat2", Volume: 30},
			{Category: "cat3", Volume: 20},
			{Category: "Other", Volume: 0},
		}, view.Entries)
		assert.Equal(t, 0, view.OverlapCount())
		assert.Equal(t, LabelCategory, view.CategoryLabel)
		assert.Equal(t, LabelVolume, view.VolumeLabel)
	})

	t.Run("fifteen uniform categories double count ranks 11 to 15", func(t *testing.T) {
		view := TopNWithOther(uniformSums(15, 10), DefaultTopN)

		assert.Len(t, view.Top(), 15)
		assert.Equal(t, Entry{Category: OtherCategory, Volume: 50}, view.Other())
		assert.Equal(t, 200.0, view.DisplayedTotal())
		assert.Equal(t, 5, view.OverlapCount())
		assert.Equal(t, OtherOffset, view.OtherFrom)
	})

	t.Run("more categories than n", func(t *testing.T) {
		view := TopNWithOther(uniformSums(25, 1), DefaultTopN)

		assert.Len(t, view.Top(), 20)
		assert.Equal(t, 15.0, view.Other().Volume)
		assert.Equal(t, 10, view.OverlapCount())
	})

	t.Run("n below offset", func(t *testing.T) {
		view := TopNWithOther(uniformSums(15, 1), 5)

		assert.Len(t, view.Top(), 5)
		// entries 5..9 appear in neither place
		assert.Equal(t, 5.0, view.Other().Volume)
		assert.Equal(t, 0, view.OverlapCount())
	})

	t.Run("empty input still emits Other", func(t *testing.T) {
		view := TopNWithOther(nil, DefaultTopN)
		assert.Equal(t, []Entry{{Category: OtherCategory, Volume: 0}}, view.Entries)
	})
}

func TestTopNWithOtherFrom_Corrected(t *testing.T) {
	sums := uniformSums(25, 2)
	view := TopNWithOtherFrom(sums, 20, 20)

	assert.Len(t, view.Top(), 20)
	assert.Equal(t, 10.0, view.Other().Volume)
	assert.Equal(t, 50.0, view.DisplayedTotal())
	assert.Equal(t, 0, view.OverlapCount())
	assert.Equal(t, 20, view.OtherFrom)
}

func TestTopNWithOtherFrom_NegativeArguments(t *testing.T) {
	view := TopNWithOtherFrom(uniformSums(3, 1), -1, -4)
	assert.Empty(t, view.Top())
	assert.Equal(t, 3.0, view.Other().Volume)
	assert.Equal(t, 0, view.N)
	assert.Equal(t, 0, view.OtherFrom)
}
