package config

import "time"

// HTTP server timeouts
const (
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// SSE push binding
const SSEHeartbeatInterval = 30 * time.Second

// Request body cap for the JSON API
const MaxBodySize = 64 << 10

// Per-IP rate limits for the unauthenticated pairing endpoints.
// Creating sessions burns pairing codes, so it gets the tighter limit.
const (
	CreateSessionLimitPerMin = 10
	PairingLimitPerMin       = 30
	RateLimitWindow          = time.Minute
)
