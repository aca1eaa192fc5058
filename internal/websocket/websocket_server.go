package websocket

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	bridge "github.com/zhaomh1998/vscode-copilot-chat"
	"github.com/zhaomh1998/vscode-copilot-chat/internal/protocol"
)

// CheckOriginFn validates the origin of a WebSocket connection request.
// Return true to allow the connection. The bridge serves local tooling, so
// the default allows everything; tighten this when exposing it beyond
// loopback.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after the WebSocket handshake completes and before
// the connection's read loop starts. It runs synchronously during connection
// setup; avoid long-running work here.
type OnConnectFn = func(client bridge.Client)

// OnClientDisconnectFn is called once when a connection leaves the registry.
// voluntary is true when the peer closed the connection normally, false for
// transport errors, broadcast pruning and server-initiated closes.
type OnClientDisconnectFn = func(client bridge.Client, voluntary bool)

// ServerState is the lifecycle state of the bridge server.
type ServerState int

const (
	StateStopped ServerState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s ServerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("ServerState(%d)", int(s))
	}
}

// RateLimitConfig defines inbound rate limiting for clients.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames a client may send per second.
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity).
	Burst int
	// Enabled determines if rate limiting is active.
	Enabled bool
}

// DefaultRateLimitConfig allows 100 frames per second with burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// ServerConfig configures a bridge server.
type ServerConfig struct {
	// Port is the TCP port to listen on. Zero selects bridge.DefaultPort.
	Port int
	// Dispatcher executes recognized commands against the host editor.
	Dispatcher bridge.CommandDispatcher
	// RateLimitConfig limits inbound frames per client. Nil selects
	// DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig
	// CheckOrigin validates upgrade requests. Nil allows all origins.
	CheckOrigin CheckOriginFn
	// OnConnect is an optional connect callback.
	OnConnect OnConnectFn
	// OnClientDisconnect is an optional disconnect callback.
	OnClientDisconnect OnClientDisconnectFn
	// Metrics receives the server's Prometheus collectors and, when it also
	// implements prometheus.Gatherer, backs the /metrics endpoint. Nil
	// disables metrics.
	Metrics prometheus.Registerer
}

// Server implements the bridge.ChatBridgeServer interface.
//
// State and the connection registry are the only process-wide mutable shared
// resources; both sit behind explicit locks because accepts, read loops and
// broadcasts run on separate goroutines. Everything else is connection-local.
type Server struct {
	port            int
	dispatcher      bridge.CommandDispatcher
	rateLimitConfig *RateLimitConfig
	onConnect       OnConnectFn
	onDisconnect    OnClientDisconnectFn
	upgrader        websocket.Upgrader
	clients         *registry
	metrics         *metrics
	metricsReg      prometheus.Registerer

	mu       sync.Mutex
	state    ServerState
	server   *http.Server
	listener net.Listener
}

var _ bridge.ChatBridgeServer = (*Server)(nil)

var errNoDispatcher = errors.New("no command dispatcher configured")

// New creates a bridge server. The server does not listen until Start.
func New(cfg *ServerConfig) *Server {
	if cfg.Port == 0 {
		cfg.Port = bridge.DefaultPort
	}
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	return &Server{
		port:            cfg.Port,
		dispatcher:      cfg.Dispatcher,
		rateLimitConfig: cfg.RateLimitConfig,
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnClientDisconnect,
		clients:         newRegistry(),
		metrics:         newMetrics(cfg.Metrics),
		metricsReg:      cfg.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Start binds the listening endpoint and begins accepting connections.
// Idempotent while running or starting. A bind failure returns a
// *bridge.BindError and reverts the state to stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning, StateStarting:
		s.mu.Unlock()
		return nil
	case StateStopping:
		s.mu.Unlock()
		return errors.New("server is stopping")
	}
	s.state = StateStarting
	s.mu.Unlock()

	// Bind synchronously so a port conflict surfaces to this caller instead
	// of a background goroutine.
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return &bridge.BindError{Port: s.port, Err: err}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	if gatherer, ok := s.metricsReg.(prometheus.Gatherer); ok {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	server := &http.Server{Handler: mux}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.state = StateRunning
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("bridge server terminated unexpectedly")
		}
	}()

	log.WithField("port", s.port).Info("chat bridge listening")
	return nil
}

// Stop closes every tracked connection, releases the listener and clears the
// registry. Idempotent while stopped or stopping.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateStopped, StateStopping:
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	// Best-effort per connection: Close carries a one second control-write
	// deadline, so a stuck peer cannot hold up shutdown.
	for _, client := range s.clients.Clear() {
		s.metrics.disconnected()
		if s.onDisconnect != nil {
			s.onDisconnect(client, false)
		}
		if err := client.Close(ctx); err != nil {
			log.WithError(err).WithField("client_id", client.ID()).Debug("error closing client during shutdown")
		}
	}

	var err error
	if server != nil {
		err = server.Shutdown(ctx)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	log.Info("chat bridge stopped")
	return errors.Wrap(err, "releasing listener")
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the configured listening port, whether or not the server is
// running.
func (s *Server) Port() int {
	return s.port
}

// ClientCount returns the number of tracked connections.
func (s *Server) ClientCount() int {
	return s.clients.Len()
}

// handleWebSocket upgrades an incoming request and registers the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.IsRunning() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		log.WithError(err).WithField("remote_addr", r.RemoteAddr).Warn("websocket upgrade failed")
		return
	}

	client := NewClient(conn, r.RemoteAddr, s.rateLimitConfig)
	s.clients.Add(client)
	s.metrics.connected()

	log.WithFields(logrus.Fields{
		"client_id":   client.ID(),
		"remote_addr": client.RemoteAddr(),
	}).Info("client connected")

	if s.onConnect != nil {
		s.onConnect(client)
	}

	go s.readLoop(client)
}

// readLoop consumes inbound frames from one connection. Frames are handled
// inline so a connection's messages are processed in the order received;
// concurrency across connections comes from one read loop per connection.
func (s *Server) readLoop(client *Client) {
	voluntary := false

	defer func() {
		if s.clients.Remove(client) {
			s.metrics.disconnected()
			if s.onDisconnect != nil {
				s.onDisconnect(client, voluntary)
			}
		}
		client.Close(context.Background())

		log.WithFields(logrus.Fields{
			"client_id": client.ID(),
			"voluntary": voluntary,
		}).Info("client disconnected")
	}()

	client.conn.SetReadLimit(protocol.MaxFrameSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-client.Context().Done():
			return
		default:
			_, data, err := client.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					voluntary = true
				} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.WithError(err).WithField("client_id", client.ID()).Warn("unexpected websocket close")
				}
				return
			}

			client.conn.SetReadDeadline(time.Now().Add(pongWait))

			if !client.AllowFrame() {
				log.WithFields(logrus.Fields{
					"client_id":   client.ID(),
					"remote_addr": client.RemoteAddr(),
				}).Warn("rate limit exceeded")
				client.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "Rate limit exceeded")
				return
			}

			s.handleFrame(client, data)
		}
	}
}

// handleFrame processes one inbound frame end to end. Every failure in here
// is connection-local: it is logged, answered with a single error frame on
// the originating connection, and never escalates to the server or to other
// connections.
func (s *Server) handleFrame(client *Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"client_id": client.ID(),
				"panic":     r,
			}).Error("recovered while processing message")
			s.metrics.frame(resultRecovered)
			s.sendFrame(client, protocol.Error(bridge.MsgProcessingFailed))
		}
	}()

	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		// Decode failure is its own case, reported before tag dispatch.
		log.WithError(err).WithField("client_id", client.ID()).Warn("malformed frame")
		s.metrics.frame(resultInvalid)
		s.sendFrame(client, protocol.Error(bridge.MsgInvalidFormat))
		return
	}

	switch cmd.Kind {
	case protocol.KindChat:
		s.handleChat(client, cmd.Message)
	case protocol.KindClearHistory:
		s.handleClearHistory(client)
	default:
		log.WithFields(logrus.Fields{
			"client_id": client.ID(),
			"type":      protocol.DescribeType(cmd.Type),
		}).Warn("unrecognized command")
		s.metrics.frame(resultInvalid)
		s.sendFrame(client, protocol.Error(bridge.MsgInvalidFormat))
	}
}

// handleChat acknowledges the command, opens a chat session in the host
// editor and confirms completion. A failure anywhere turns the whole attempt
// into the generic error response rather than a partial success.
func (s *Server) handleChat(client *Client, text string) {
	if err := s.sendFrame(client, protocol.Ack(bridge.PhaseChatStarted, bridge.MsgChatStarted)); err != nil {
		s.failFrame(client, "chat", resultTransport, err)
		return
	}

	if err := s.dispatch(client, func(ctx context.Context, d bridge.CommandDispatcher) error {
		return d.OpenChat(ctx, text)
	}); err != nil {
		s.failFrame(client, "chat", resultDispatch, err)
		return
	}

	if err := s.sendFrame(client, protocol.Completed(bridge.PhaseChatOpened, bridge.MsgChatOpened)); err != nil {
		s.failFrame(client, "chat", resultTransport, err)
		return
	}
	s.metrics.frame(resultOK)
}

// handleClearHistory acknowledges the command, clears the host editor's chat
// history and confirms completion.
func (s *Server) handleClearHistory(client *Client) {
	if err := s.sendFrame(client, protocol.Ack(bridge.PhaseClearStarted, bridge.MsgClearStarted)); err != nil {
		s.failFrame(client, "clear_history", resultTransport, err)
		return
	}

	if err := s.dispatch(client, func(ctx context.Context, d bridge.CommandDispatcher) error {
		return d.ClearHistory(ctx)
	}); err != nil {
		s.failFrame(client, "clear_history", resultDispatch, err)
		return
	}

	if err := s.sendFrame(client, protocol.Completed(bridge.PhaseClearCompleted, bridge.MsgClearCompleted)); err != nil {
		s.failFrame(client, "clear_history", resultTransport, err)
		return
	}
	s.metrics.frame(resultOK)
}

// dispatch crosses the host-editor boundary under the connection's context.
// The call may suspend indefinitely; only this connection's read loop waits.
func (s *Server) dispatch(client *Client, action func(ctx context.Context, d bridge.CommandDispatcher) error) error {
	if s.dispatcher == nil {
		return errNoDispatcher
	}
	return action(client.Context(), s.dispatcher)
}

// failFrame logs a per-message failure and answers the originating
// connection with the generic error frame. Dispatch and transport failures
// deliberately share one client-visible response; they differ only in logs
// and metrics.
func (s *Server) failFrame(client *Client, command, result string, err error) {
	log.WithError(err).WithFields(logrus.Fields{
		"client_id": client.ID(),
		"command":   command,
	}).Error("failed to process message")
	s.metrics.frame(result)
	// Best effort: the connection may already be gone.
	s.sendFrame(client, protocol.Error(bridge.MsgProcessingFailed))
}

// sendFrame serializes and queues one outbound frame.
func (s *Server) sendFrame(client *Client, f protocol.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return errors.Wrap(err, "encoding frame")
	}
	return client.Send(client.Context(), data)
}

// Broadcast serializes payload once and delivers it to a snapshot of the
// registry. Clients whose transport is no longer open are skipped; clients
// that fail the send are pruned from the registry and closed. Per-recipient
// failures never fail the broadcast as a whole.
func (s *Server) Broadcast(ctx context.Context, payload interface{}) error {
	frame, err := protocol.EncodeBroadcast(payload)
	if err != nil {
		return errors.Wrap(err, "encoding broadcast payload")
	}

	dropped := 0
	for _, client := range s.clients.Snapshot() {
		if !client.IsAlive() {
			continue
		}
		if err := client.Send(ctx, frame); err != nil {
			if s.clients.Remove(client) {
				s.metrics.disconnected()
				if s.onDisconnect != nil {
					s.onDisconnect(client, false)
				}
			}
			client.Close(ctx)
			dropped++
			log.WithError(err).WithField("client_id", client.ID()).Warn("pruned unreachable client during broadcast")
		}
	}

	s.metrics.broadcast(dropped)
	return nil
}

// SendTo delivers a payload to a single tracked client by ID.
func (s *Server) SendTo(ctx context.Context, clientID string, payload interface{}) error {
	client, ok := s.clients.Get(clientID)
	if !ok {
		return errors.Errorf("%s: %s", bridge.ErrClientNotFound, clientID)
	}

	frame, err := protocol.EncodeBroadcast(payload)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}
	return client.Send(ctx, frame)
}
