// Package protocol implements the JSON frame codec of the bridge.
//
// Each frame is one JSON object. Inbound frames decode into a closed set of
// commands with an explicit unrecognized case; a frame that is not valid JSON
// at all is a distinct malformed case, reported before tag dispatch.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	bridge "github.com/zhaomh1998/vscode-copilot-chat"
)

// MaxFrameSize caps inbound frames. The protocol carries short JSON objects;
// anything near this limit is garbage or abuse.
const MaxFrameSize = 1 * 1024 * 1024

// CommandKind identifies the decoded inbound command.
type CommandKind int

const (
	// KindChat is {"type":"chat","message":...}.
	KindChat CommandKind = iota
	// KindClearHistory is {"type":"clear_history"}.
	KindClearHistory
	// KindUnrecognized is well-formed JSON that matches no supported shape.
	KindUnrecognized
)

// Command is one decoded inbound frame.
type Command struct {
	Kind CommandKind
	// Message is the seed text of a chat command; empty otherwise.
	Message string
	// Type is the raw type tag, kept for diagnostics on unrecognized frames.
	Type string
}

// ErrMalformed reports a frame that failed to parse as JSON. It is
// distinguished from an unrecognized command: decode failure is handled
// before tag dispatch.
type ErrMalformed struct {
	Cause error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Cause)
}

func (e *ErrMalformed) Unwrap() error { return e.Cause }

type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DecodeCommand decodes one inbound text frame.
//
// A non-parseable frame returns *ErrMalformed. A parseable frame always
// returns a Command; unsupported shapes come back as KindUnrecognized rather
// than an error, so the caller can answer them with a protocol-level response.
func DecodeCommand(data []byte) (Command, error) {
	if len(data) > MaxFrameSize {
		return Command{}, &ErrMalformed{Cause: fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), MaxFrameSize)}
	}

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Command{}, &ErrMalformed{Cause: err}
	}

	switch frame.Type {
	case bridge.TypeChat:
		return Command{Kind: KindChat, Message: frame.Message, Type: frame.Type}, nil
	case bridge.TypeClearHistory:
		return Command{Kind: KindClearHistory, Type: frame.Type}, nil
	default:
		return Command{Kind: KindUnrecognized, Type: frame.Type}, nil
	}
}

// Frame is one outbound status frame.
type Frame struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Encode serializes an outbound frame.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// Ack builds the in-progress acknowledgement for a phase.
func Ack(phase, detail string) Frame {
	return Frame{Type: phase, Status: bridge.StatusSuccess, Message: detail}
}

// Completed builds the completion frame for a phase.
func Completed(phase, detail string) Frame {
	return Frame{Type: phase, Status: bridge.StatusSuccess, Message: detail}
}

// Error builds an error frame.
func Error(detail string) Frame {
	return Frame{Type: bridge.PhaseError, Status: bridge.StatusError, Message: detail}
}

// EncodeBroadcast serializes an arbitrary broadcast payload to a text frame.
// []byte, json.RawMessage and string payloads pass through untouched when
// they already hold serialized text; everything else is marshalled.
func EncodeBroadcast(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		return json.Marshal(payload)
	}
}

// DescribeType renders a type tag for log lines, flattening control
// characters so hostile input cannot mangle the log stream.
func DescribeType(tag string) string {
	if tag == "" {
		return "<empty>"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '.'
		}
		return r
	}, tag)
}
