package bridge

import "fmt"

// Response phases reported back to the originating connection.
const (
	PhaseChatStarted    = "chat_started"
	PhaseChatOpened     = "chat_opened"
	PhaseClearStarted   = "clear_started"
	PhaseClearCompleted = "clear_completed"
	PhaseError          = "error"
)

// Frame status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Inbound command types.
const (
	TypeChat         = "chat"
	TypeClearHistory = "clear_history"
)

// Standard response texts.
const (
	MsgChatStarted    = "Chat session initiated"
	MsgChatOpened     = "Chat opened successfully"
	MsgClearStarted   = "Clearing chat history..."
	MsgClearCompleted = "Chat history cleared successfully"

	// MsgInvalidFormat is sent for frames that do not decode or do not match
	// a supported command shape.
	MsgInvalidFormat = `Invalid message format. Expected: {"type": "chat", "message": "..."} or {"type": "clear_history"}`

	// MsgProcessingFailed is the generic failure response; protocol, dispatch
	// and send failures all collapse into it deliberately.
	MsgProcessingFailed = "Failed to process message"
)

// Standard error messages.
const (
	ErrConnectionClosed = "client connection is closed"
	ErrContextCancelled = "client context cancelled"
	ErrClientNotFound   = "client not found"
)

// DefaultPort is the port the bridge listens on unless configured otherwise.
const DefaultPort = 3001

// BindError reports that the listening endpoint could not be acquired on
// Start. It is the only error class that fails a top-level lifecycle
// operation; the server state reverts to stopped and the caller may retry.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind to port %d failed: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }
