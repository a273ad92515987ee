package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// QuantityCSV is a small schedule export with three families and one
// unparseable volume ("n/a").
const QuantityCSV = `Family Name,Type Name,Volume,Level
Basic Wall,Generic - 200mm,12.5 m³,Level 1
Basic Wall,Generic - 200mm,7.5 m³,Level 2
Basic Wall,Exterior - Brick,30 m³,Level 1
Floor,Concrete 250mm,40.25 m³,Level 1
Floor,Concrete 250mm,n/a,Level 2
Structural Column,UC305x305x97,0.75 m³,Level 1
`

// QuantityCSVSemicolon is QuantityCSV exported with a European locale
const QuantityCSVSemicolon = "\ufeffFamily Name;Type Name;Volume\n" +
	"Basic Wall;Generic - 200mm;12.5 m³\n" +
	"Floor;Concrete 250mm;40.25 m³\n"

// MissingVolumeCSV lacks the Volume column
const MissingVolumeCSV = `Family Name,Type Name,Area
Basic Wall,Generic - 200mm,10 m²
`

// UniformCategoriesCSV returns n categories of volume each, one record per
// category, named cat01..catNN so that ties sort in the same order as created.
func UniformCategoriesCSV(n int, volume float64) string {
	var b strings.Builder
	b.WriteString("Family Name,Type Name,Volume\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Family,cat%02d,%g m³\n", i, volume)
	}
	return b.String()
}

// WriteFixture writes content to a file in a test temp dir and returns its path
func WriteFixture(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}
