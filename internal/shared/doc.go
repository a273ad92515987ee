// Package shared holds helpers used across the qtodash packages that do not
// belong to a single layer.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and quantity-takeoff fixtures shaped like a Revit schedule
// export (Family Name, Type Name, Volume).
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteFixture(t, "quantities.csv", testutil.QuantityCSV)
//	    ...
//	}
//
// Nothing here may import business packages; testutil is imported by them.
package shared
