// Package services sits between the HTTP handlers and the data pipeline.
//
// DatasetService keeps one dataset per browser session, reads uploads and
// Google Sheets ranges into tables, and builds the data products the
// dashboard shows. Products are cached per session, keyed by the dataset
// fingerprint, the Top-N size and the Other rule, and every new upload
// purges the session's earlier entries before the new dataset becomes
// current. Concurrent requests for the same key share one aggregation.
//
// HealthService answers the health, readiness and liveness probes.
package services
