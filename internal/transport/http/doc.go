// Package http implements the HTTP handlers of the quantities dashboard.
// Handlers stay thin: they parse and validate the request, call the dataset
// service and format the response. Aggregation lives in dataprocessing and
// caching in services.
//
// # Routes
//
//	POST   /api/dataset            multipart upload, field "file" (.csv or .xlsx)
//	POST   /api/dataset/sheets     {"spreadsheet_id": "...", "range": "Sheet1!A:Z"}
//	GET    /api/dataset            metadata of the session's dataset
//	DELETE /api/dataset            forget the session's dataset
//	GET    /api/dataset/summary    ?group_by=item|family
//	GET    /api/dataset/top        ?n=20
//	GET    /api/dataset/totals
//	GET    /api/dataset/dashboard  chart definitions for the page
//	GET    /api/dataset/export     ?format=csv|xlsx|json|text&n=20
//
// Successful JSON responses use the envelope
//
//	{"status": "success", "data": ...}
//
// # Error Handling
//
// Errors are written as RFC 7807 problem documents with the
// application/problem+json content type:
//
//	{
//	    "type": "/errors/dataset/missing-column",
//	    "title": "Missing Required Columns",
//	    "status": 422,
//	    "detail": "required column(s) not found: \"Volume\"",
//	    "instance": "/api/dataset",
//	    "trace_id": "..."
//	}
//
// # Sessions
//
// Every handler reads the upload session from the request context, where the
// session middleware put it. Websocket connections on /ws join the same
// session and receive dataset.replaced and dataset.cleared events.
package http
