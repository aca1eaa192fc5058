// Package ws is the public entry point for running a chat bridge server.
package ws

import (
	"net/http"

	bridge "github.com/zhaomh1998/vscode-copilot-chat"
	"github.com/zhaomh1998/vscode-copilot-chat/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type OnConnectFn = websocket.OnConnectFn
type OnDisconnectFn = websocket.OnClientDisconnectFn
type ServerConfig = *websocket.ServerConfig
type ServerState = websocket.ServerState

// Lifecycle states, re-exported for callers inspecting Server.State.
const (
	StateStopped  = websocket.StateStopped
	StateStarting = websocket.StateStarting
	StateRunning  = websocket.StateRunning
	StateStopping = websocket.StateStopping
)

// New creates a chat bridge server from a configuration.
//
// Example:
//
//	server := ws.New(ws.NewConfig(3001, dispatcher))
//	if err := server.Start(ctx); err != nil {
//	    var bindErr *bridge.BindError
//	    if errors.As(err, &bindErr) {
//	        // port in use; retry or pick another port
//	    }
//	}
func New(cfg ServerConfig) *websocket.Server {
	return websocket.New(cfg)
}

// NewConfig builds a configuration with the defaults a local bridge wants:
// default rate limiting, all origins allowed, no callbacks, no metrics.
// Callers needing more control fill the ServerConfig directly.
func NewConfig(port int, dispatcher bridge.CommandDispatcher) ServerConfig {
	return &websocket.ServerConfig{
		Port:            port,
		Dispatcher:      dispatcher,
		RateLimitConfig: DefaultRateLimitConfig(),
		CheckOrigin:     AllOrigins(),
	}
}

// AllOrigins returns a checkOrigin function that allows all origins. The
// bridge listens on localhost for local tooling; restrict this when binding
// anything reachable from elsewhere.
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
