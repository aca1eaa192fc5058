// Package bridge defines the public surface of a local chat bridge server for
// a host editor.
//
// The bridge accepts persistent WebSocket connections, decodes a small JSON
// command protocol from each, forwards recognized commands to the editor
// through a CommandDispatcher, and reports progress back to the originating
// connection. It can also broadcast a payload to every open connection.
//
// # Quick start
//
//	import (
//	    "github.com/zhaomh1998/vscode-copilot-chat/dispatch"
//	    "github.com/zhaomh1998/vscode-copilot-chat/ws"
//	)
//
//	dispatcher := dispatch.Funcs{
//	    OnOpenChat:     func(ctx context.Context, text string) error { ... },
//	    OnClearHistory: func(ctx context.Context) error { ... },
//	}
//
//	server := ws.New(ws.NewConfig(3001, dispatcher))
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Stop(ctx)
//
// # Protocol
//
// One JSON object per text frame. Inbound:
//
//	{"type": "chat", "message": "<text>"}
//	{"type": "clear_history"}
//
// Outbound:
//
//	{"type": "<phase>", "status": "success"|"error", "message": "<text>"}
//
// where <phase> is one of chat_started, chat_opened, clear_started,
// clear_completed, error. A chat command produces chat_started followed by
// chat_opened once the editor confirms; any failure along the way produces a
// single error frame instead. Malformed or unrecognized frames get an error
// frame and leave the connection usable.
//
// # Failure containment
//
// No failure originating from one connection's handling escalates to the
// server or to other connections. Only a bind failure on Start is visible to
// the caller, as a *BindError.
package bridge
