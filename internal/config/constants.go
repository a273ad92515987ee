package config

import "time"

// Application constants
const (
	AppName  = "qtodash"
	AppTitle = "Revit Project Data Analysis"

	EnvPrefix      = "QTODASH"
	EnvConfigFile  = "QTODASH_CONFIG_FILE"
	DefaultEnvFile = ".env"

	// Session cookie carrying the per-browser dataset session
	SessionCookieName = "qtodash_session"

	// WebSocket
	WebSocketEndpoint    = "/ws"
	WebSocketPingPeriod  = 30 * time.Second
	WebSocketPongWait    = 60 * time.Second
	WebSocketWriteWait   = 10 * time.Second
	WebSocketMaxReadSize = 512

	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"
)

// Version is set at build time with -ldflags "-X qtodash/internal/config.Version=..."
var Version = "dev"
