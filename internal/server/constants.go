package server

import "time"

const (
	// Per-connection budget for client websocket messages, refilled evenly over the window
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Upper bound on request bodies for the JSON API
	MaxBodyBytes = 1 << 16

	// Timeout for a single broadcast write to a slow client
	BroadcastWriteTimeout = 5 * time.Second
)
