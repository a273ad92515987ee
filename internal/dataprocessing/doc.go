// Package dataprocessing turns a building-model quantity schedule into the
// data products shown on the dashboard.
//
// The pipeline has three pure steps with no UI dependency:
//
//	Table → Preprocess → Summarize (by family, by family/type) → TopNWithOther
//
// Preprocess derives two columns for every record: the composite key
// "Family Name: Type Name" and "Volume (m3)", the first numeric token found
// in the raw Volume cell. Records whose Volume holds no number are kept but
// carry an invalid Volume, so they add nothing to sums and counts.
//
// Summarize groups by exact key equality and orders categories by
// descending sum, breaking ties by name.
//
// TopNWithOther keeps the first n categories and appends an "Other" bucket
// summed from index OtherOffset (10) onward regardless of n. With more than
// ten categories this counts ranks 11..n twice; the dashboard has always
// shown it this way. TopNWithOtherFrom(sums, n, n) gives the non-overlapping
// remainder.
//
// Readers for CSV, XLSX and Google Sheets produce the same Table shape:
// the first row is the header and every later row is a record.
package dataprocessing
