package dataprocessing

import "strings"

// PreprocessStats describes what Preprocess found in the input
type PreprocessStats struct {
	Records            int `json:"records"`
	UnparseableVolumes int `json:"unparseable_volumes"`
	// UnparseableSamples holds up to MaxUnparseableSamples distinct raw
	// Volume values that yielded no number.
	UnparseableSamples []string `json:"unparseable_samples,omitempty"`
}

// MaxUnparseableSamples bounds PreprocessStats.UnparseableSamples
const MaxUnparseableSamples = 5

// Preprocess returns a copy of t with CompositeKey and VolumeNumeric set on
// every record. Record count and order are unchanged and raw cells are
// shared, not copied. Running it again on its own output reproduces the
// same derived values.
func Preprocess(t *Table) (*Table, PreprocessStats, error) {
	var stats PreprocessStats
	if t == nil {
		return nil, stats, malformedFileError(0, "no table to preprocess", nil)
	}
	if missing := t.missingColumns(RequiredColumns...); len(missing) > 0 {
		return nil, stats, missingColumnError(missing)
	}

	out := &Table{
		Header:     append([]string(nil), t.Header...),
		Records:    make([]Record, len(t.Records)),
		normalized: true,
	}

	for i, rec := range t.Records {
		raw := rec.Cells[ColumnVolume]
		value, ok := ParseVolume(raw)
		if !ok {
			stats.UnparseableVolumes++
			stats.addSample(raw)
		}

		out.Records[i] = Record{
			Cells:         rec.Cells,
			CompositeKey:  CompositeKey(rec.Cells[ColumnFamilyName], rec.Cells[ColumnTypeName]),
			VolumeNumeric: Volume{Value: value, Valid: ok},
		}
	}
	stats.Records = len(out.Records)

	return out, stats, nil
}

// CompositeKey joins a family and type name the way the dashboard labels them
func CompositeKey(family, typeName string) string {
	return family + ": " + typeName
}

func (s *PreprocessStats) addSample(raw string) {
	if len(s.UnparseableSamples) >= MaxUnparseableSamples {
		return
	}
	raw = strings.TrimSpace(raw)
	for _, existing := range s.UnparseableSamples {
		if existing == raw {
			return
		}
	}
	s.UnparseableSamples = append(s.UnparseableSamples, raw)
}
