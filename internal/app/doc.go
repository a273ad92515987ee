// Package app wires the dashboard server together: configuration, logging,
// OpenTelemetry, the dataset service with its caches, the websocket hub and
// the chi router.
//
// # Initialization Flow
//
//	1. Load configuration from .env, the environment and an optional YAML file
//	2. Initialize logging and OpenTelemetry
//	3. Build the websocket hub, the dataset service and the presenter registry
//	4. Register caches with the sweep manager
//	5. Mount middleware and routes, then create the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(web.FS)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then shuts the server down, stops the
// hub and the cache sweeper, and flushes telemetry. Initialization errors
// are returned to the caller; the package never calls os.Exit.
package app
