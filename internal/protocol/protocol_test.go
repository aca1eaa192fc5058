package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	bridge "github.com/zhaomh1998/vscode-copilot-chat"
)

// TestDecodeCommand tests decoding of inbound frames into commands
func TestDecodeCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		data        string
		wantKind    CommandKind
		wantMessage string
	}{
		{
			name:        "chat command",
			data:        `{"type":"chat","message":"hello"}`,
			wantKind:    KindChat,
			wantMessage: "hello",
		},
		{
			name:        "chat with empty message",
			data:        `{"type":"chat","message":""}`,
			wantKind:    KindChat,
			wantMessage: "",
		},
		{
			name:        "chat with missing message field",
			data:        `{"type":"chat"}`,
			wantKind:    KindChat,
			wantMessage: "",
		},
		{
			name:     "clear history command",
			data:     `{"type":"clear_history"}`,
			wantKind: KindClearHistory,
		},
		{
			name:     "clear history ignores extra fields",
			data:     `{"type":"clear_history","message":"unused"}`,
			wantKind: KindClearHistory,
		},
		{
			name:     "unknown type tag",
			data:     `{"type":"shutdown"}`,
			wantKind: KindUnrecognized,
		},
		{
			name:     "missing type tag",
			data:     `{"not":"valid"}`,
			wantKind: KindUnrecognized,
		},
		{
			name:     "empty object",
			data:     `{}`,
			wantKind: KindUnrecognized,
		},
		{
			name:        "unicode message",
			data:        `{"type":"chat","message":"héllo wörld 🌍"}`,
			wantKind:    KindChat,
			wantMessage: "héllo wörld 🌍",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd, err := DecodeCommand([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeCommand() error = %v", err)
			}

			if cmd.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", cmd.Kind, tt.wantKind)
			}

			if cmd.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", cmd.Message, tt.wantMessage)
			}
		})
	}
}

// TestDecodeCommandMalformed tests that non-parseable frames are a distinct
// failure, not an unrecognized command
func TestDecodeCommandMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("hello there")},
		{name: "truncated object", data: []byte(`{"type":"chat"`)},
		{name: "empty frame", data: []byte("")},
		{name: "json array", data: []byte(`[1,2,3]`)},
		{name: "bare string", data: []byte(`"chat"`)},
		{name: "oversize frame", data: []byte("{" + strings.Repeat(" ", MaxFrameSize) + "}")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := DecodeCommand(tt.data)
			if err == nil {
				t.Fatal("DecodeCommand() expected error, got nil")
			}

			var malformed *ErrMalformed
			if !errors.As(err, &malformed) {
				t.Errorf("error type = %T, want *ErrMalformed", err)
			}
		})
	}
}

// TestFrameEncode tests the outbound frame wire shape
func TestFrameEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frame    Frame
		wantJSON string
	}{
		{
			name:     "acknowledgement",
			frame:    Ack(bridge.PhaseChatStarted, bridge.MsgChatStarted),
			wantJSON: `{"type":"chat_started","status":"success","message":"Chat session initiated"}`,
		},
		{
			name:     "completion",
			frame:    Completed(bridge.PhaseClearCompleted, bridge.MsgClearCompleted),
			wantJSON: `{"type":"clear_completed","status":"success","message":"Chat history cleared successfully"}`,
		},
		{
			name:     "error",
			frame:    Error(bridge.MsgProcessingFailed),
			wantJSON: `{"type":"error","status":"error","message":"Failed to process message"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := tt.frame.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			if string(data) != tt.wantJSON {
				t.Errorf("Encode() = %s, want %s", data, tt.wantJSON)
			}
		})
	}
}

// TestEncodeBroadcast tests payload serialization for broadcast
func TestEncodeBroadcast(t *testing.T) {
	t.Parallel()

	t.Run("raw bytes pass through", func(t *testing.T) {
		t.Parallel()
		out, err := EncodeBroadcast([]byte(`{"a":1}`))
		if err != nil {
			t.Fatalf("EncodeBroadcast() error = %v", err)
		}
		if string(out) != `{"a":1}` {
			t.Errorf("got %s", out)
		}
	})

	t.Run("string passes through", func(t *testing.T) {
		t.Parallel()
		out, err := EncodeBroadcast("plain")
		if err != nil {
			t.Fatalf("EncodeBroadcast() error = %v", err)
		}
		if string(out) != "plain" {
			t.Errorf("got %s", out)
		}
	})

	t.Run("raw message passes through", func(t *testing.T) {
		t.Parallel()
		out, err := EncodeBroadcast(json.RawMessage(`{"b":2}`))
		if err != nil {
			t.Fatalf("EncodeBroadcast() error = %v", err)
		}
		if string(out) != `{"b":2}` {
			t.Errorf("got %s", out)
		}
	})

	t.Run("struct is marshalled", func(t *testing.T) {
		t.Parallel()
		out, err := EncodeBroadcast(map[string]int{"n": 7})
		if err != nil {
			t.Fatalf("EncodeBroadcast() error = %v", err)
		}
		if string(out) != `{"n":7}` {
			t.Errorf("got %s", out)
		}
	})

	t.Run("unserializable payload fails", func(t *testing.T) {
		t.Parallel()
		if _, err := EncodeBroadcast(make(chan int)); err == nil {
			t.Error("expected error for channel payload")
		}
	})
}

// TestDescribeType tests log sanitization of hostile type tags
func TestDescribeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  string
		want string
	}{
		{name: "plain tag", tag: "chat", want: "chat"},
		{name: "empty tag", tag: "", want: "<empty>"},
		{name: "control characters flattened", tag: "ch\nat\x1b[31m", want: "ch.at.[31m"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DescribeType(tt.tag); got != tt.want {
				t.Errorf("DescribeType(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

// BenchmarkDecodeCommand benchmarks inbound frame decoding
func BenchmarkDecodeCommand(b *testing.B) {
	data := []byte(`{"type":"chat","message":"benchmark message"}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecodeCommand(data)
	}
}
