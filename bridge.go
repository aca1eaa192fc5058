package bridge

import "context"

// ChatBridgeServer is a local WebSocket bridge between external clients and a
// host editor. Clients connect over a persistent connection, send JSON command
// frames, and receive status frames describing the progress of each command.
//
// Example usage:
//
//	import "github.com/zhaomh1998/vscode-copilot-chat/ws"
//
//	server := ws.New(ws.NewConfig(3001, dispatcher))
//
//	if err := server.Start(ctx); err != nil {
//	    // port already in use, etc.
//	}
//	defer server.Stop(ctx)
type ChatBridgeServer interface {
	// Start binds the listening endpoint on the configured port and begins
	// accepting connections. It is idempotent: calling Start while the server
	// is already running (or starting) returns nil without rebinding.
	//
	// If the port cannot be bound, Start returns a *BindError carrying the
	// underlying cause and the server remains stopped; the caller may retry.
	Start(ctx context.Context) error

	// Stop closes every tracked connection, releases the listening endpoint
	// and clears the connection registry. It is idempotent: calling Stop while
	// the server is already stopped (or stopping) returns nil.
	//
	// Closing connections is best-effort per connection; a single stuck
	// connection does not block shutdown beyond its write deadline.
	Stop(ctx context.Context) error

	// IsRunning reports whether the server is currently accepting connections.
	IsRunning() bool

	// Port returns the configured listening port. It is valid whether or not
	// the server is running and always returns the value fixed at
	// construction.
	Port() int

	// Broadcast serializes payload once and sends the resulting frame to
	// every currently open connection. Connections whose transport is no
	// longer open are skipped; connections that fail the send are removed
	// from the registry. Broadcast never fails because one recipient is
	// unreachable; the only error it returns is a payload serialization
	// failure.
	Broadcast(ctx context.Context, payload interface{}) error
}

// CommandDispatcher is the boundary to the host editor. Recognized commands
// decoded from a connection are forwarded through it; the bridge consumes
// nothing from the host beyond success or failure.
//
// Both actions may suspend for an unbounded time while the host works. A
// pending dispatch blocks only the connection that issued it; other
// connections keep processing.
type CommandDispatcher interface {
	// OpenChat opens an interactive chat session in the host editor seeded
	// with the given text.
	OpenChat(ctx context.Context, text string) error

	// ClearHistory clears the host editor's chat session history.
	ClearHistory(ctx context.Context) error
}

// Client represents one accepted client connection.
//
// A client is owned by the server's registry for its lifetime: created on
// accept, removed on close, error, or shutdown, whichever happens first. No
// component may hold a Client reference past its removal.
type Client interface {
	// ID returns a unique identifier for the connection, generated at accept
	// time and constant for the connection's lifetime.
	ID() string

	// RemoteAddr returns the client's remote network address ("IP:port").
	RemoteAddr() string

	// Context returns the connection's lifecycle context, cancelled when the
	// connection closes.
	Context() context.Context

	// Send queues a text frame for delivery to the client. It returns an
	// error if the connection is closed or the context is cancelled.
	Send(ctx context.Context, frame []byte) error

	// Close closes the connection with a normal-closure code.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific WebSocket close
	// code and optional reason.
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive reports whether the connection is still open. Guard sends with
	// it when racing shutdown.
	IsAlive() bool
}
