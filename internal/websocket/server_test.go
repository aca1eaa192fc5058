package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	bridge "github.com/zhaomh1998/vscode-copilot-chat"
	"github.com/zhaomh1998/vscode-copilot-chat/dispatch"
)

func init() {
	// keep test output clean
	SetLogger(nil)
}

func noopDispatcher() bridge.CommandDispatcher {
	return dispatch.Funcs{
		OnOpenChat:     func(ctx context.Context, text string) error { return nil },
		OnClearHistory: func(ctx context.Context) error { return nil },
	}
}

// TestNewServerDefaults tests configuration defaulting
func TestNewServerDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *ServerConfig
		wantPort int
	}{
		{
			name:     "zero port uses default",
			cfg:      &ServerConfig{Dispatcher: noopDispatcher()},
			wantPort: bridge.DefaultPort,
		},
		{
			name:     "explicit port kept",
			cfg:      &ServerConfig{Port: 4100, Dispatcher: noopDispatcher()},
			wantPort: 4100,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := New(tt.cfg)

			if server.Port() != tt.wantPort {
				t.Errorf("Port() = %d, want %d", server.Port(), tt.wantPort)
			}
			if server.rateLimitConfig == nil {
				t.Error("rateLimitConfig not defaulted")
			}
			if server.State() != StateStopped {
				t.Errorf("initial State() = %v, want %v", server.State(), StateStopped)
			}
			if server.IsRunning() {
				t.Error("new server IsRunning() = true")
			}
			if server.upgrader.ReadBufferSize != 1024 {
				t.Errorf("upgrader.ReadBufferSize = %d, want 1024", server.upgrader.ReadBufferSize)
			}
		})
	}
}

// TestServerStateString tests the lifecycle state labels
func TestServerStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state ServerState
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{ServerState(42), "ServerState(42)"},
	}

	for _, tt := range tests {
		tt := tt
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

// TestStartStopLifecycle tests the full state machine over a real listener
func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	server := New(&ServerConfig{Port: 19301, Dispatcher: noopDispatcher()})
	ctx := context.Background()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !server.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if server.State() != StateRunning {
		t.Errorf("State() = %v, want %v", server.State(), StateRunning)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if server.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if server.State() != StateStopped {
		t.Errorf("State() = %v, want %v", server.State(), StateStopped)
	}
	if server.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Stop, want 0", server.ClientCount())
	}
}

// TestStartIdempotent tests that starting a running server is a no-op and
// leaves exactly one listener bound
func TestStartIdempotent(t *testing.T) {
	t.Parallel()

	server := New(&ServerConfig{Port: 19302, Dispatcher: noopDispatcher()})
	ctx := context.Background()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer server.Stop(context.Background())

	for i := 0; i < 3; i++ {
		if err := server.Start(ctx); err != nil {
			t.Errorf("repeat Start() #%d error = %v, want nil", i, err)
		}
	}
	if !server.IsRunning() {
		t.Error("IsRunning() = false after repeated Start")
	}
	if server.Port() != 19302 {
		t.Errorf("Port() = %d, want 19302", server.Port())
	}
}

// TestStopIdempotent tests that stopping a stopped server is a no-op
func TestStopIdempotent(t *testing.T) {
	t.Parallel()

	server := New(&ServerConfig{Port: 19303, Dispatcher: noopDispatcher()})
	ctx := context.Background()

	// never started
	for i := 0; i < 2; i++ {
		if err := server.Stop(ctx); err != nil {
			t.Errorf("Stop() on stopped server error = %v, want nil", err)
		}
	}

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := server.Stop(ctx); err != nil {
			t.Errorf("Stop() #%d error = %v, want nil", i, err)
		}
	}
	if server.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", server.ClientCount())
	}
}

// TestStartBindConflict tests that a second server on the same port fails
// with a BindError and reverts to stopped
func TestStartBindConflict(t *testing.T) {
	t.Parallel()

	first := New(&ServerConfig{Port: 19304, Dispatcher: noopDispatcher()})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	defer first.Stop(context.Background())

	second := New(&ServerConfig{Port: 19304, Dispatcher: noopDispatcher()})
	err := second.Start(context.Background())
	if err == nil {
		second.Stop(context.Background())
		t.Fatal("second Start() on same port succeeded, want BindError")
	}

	bindErr, ok := err.(*bridge.BindError)
	if !ok {
		t.Fatalf("error type = %T, want *bridge.BindError", err)
	}
	if bindErr.Port != 19304 {
		t.Errorf("BindError.Port = %d, want 19304", bindErr.Port)
	}
	if bindErr.Unwrap() == nil {
		t.Error("BindError carries no cause")
	}

	if second.State() != StateStopped {
		t.Errorf("State() after bind failure = %v, want %v", second.State(), StateStopped)
	}

	// the failed server can retry once the port frees up
	first.Stop(context.Background())
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("retry Start() error = %v", err)
	}
	second.Stop(context.Background())
}

// TestStartRestart tests a stop/start cycle rebinding the same port
func TestStartRestart(t *testing.T) {
	t.Parallel()

	server := New(&ServerConfig{Port: 19305, Dispatcher: noopDispatcher()})
	ctx := context.Background()

	for cycle := 0; cycle < 3; cycle++ {
		if err := server.Start(ctx); err != nil {
			t.Fatalf("cycle %d Start() error = %v", cycle, err)
		}
		if err := server.Stop(ctx); err != nil {
			t.Fatalf("cycle %d Stop() error = %v", cycle, err)
		}
	}
}

// TestMetricsRegistration tests that collectors register against a custom
// registry without panicking and report after activity
func TestMetricsRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	server := New(&ServerConfig{Port: 19306, Dispatcher: noopDispatcher(), Metrics: reg})

	if server.metrics == nil {
		t.Fatal("metrics not constructed with a registerer")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "chatbridge_connections_active" {
			found = true
		}
	}
	if !found {
		t.Error("chatbridge_connections_active not registered")
	}
}

// TestNilMetricsNoOp tests that a server without a registerer runs metrics
// calls as no-ops
func TestNilMetricsNoOp(t *testing.T) {
	t.Parallel()

	server := New(&ServerConfig{Port: 19307, Dispatcher: noopDispatcher()})
	if server.metrics != nil {
		t.Fatal("metrics constructed without a registerer")
	}

	// must not panic
	server.metrics.connected()
	server.metrics.disconnected()
	server.metrics.frame(resultOK)
	server.metrics.broadcast(2)
}
