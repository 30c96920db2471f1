// Package gateway serves the voice provider webhooks, the admin endpoints and
// the live call monitor.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/soyeahso/meetbot/internal/agent"
	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/metrics"
	"github.com/soyeahso/meetbot/internal/store"
	"github.com/soyeahso/meetbot/internal/telephony"
	"github.com/soyeahso/meetbot/internal/version"
)

const (
	maxMonitorPayload = 64 * 1024
	handshakeTimeout  = 10 * time.Second
)

// Dialer places outbound calls.
type Dialer interface {
	Dial(ctx context.Context, to, webhookURL string) (string, error)
}

// CallLog persists call lifecycle rows.
type CallLog interface {
	RecordStart(callID string, meta domain.CallMeta) error
	RecordTurn(callID string) error
	RecordStatus(callID string, meta domain.CallMeta) error
	RecordEnd(callID string, disposition domain.Disposition, reason string) error
	Recent(limit int) ([]store.CallRecord, error)
}

// Server is the meetbot HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	auth     ResolvedAuth
	log      *logging.Logger
	orch     *agent.Orchestrator
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	hooks      *hooks.Manager
	metrics    *metrics.Metrics
	dialer     Dialer
	callLog    CallLog
	signatures *telephony.SignatureValidator

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption enables an optional collaborator.
type ServerOption func(*Server)

// WithHooks pushes every hook event to monitors and, with a call log,
// records call lifecycle rows.
func WithHooks(hm *hooks.Manager) ServerOption { return func(s *Server) { s.hooks = hm } }

// WithMetrics counts requests and serves /metrics.
func WithMetrics(m *metrics.Metrics) ServerOption { return func(s *Server) { s.metrics = m } }

// WithDialer enables POST /calls.
func WithDialer(d Dialer) ServerOption { return func(s *Server) { s.dialer = d } }

// WithCallLog enables GET /calls.
func WithCallLog(cl CallLog) ServerOption { return func(s *Server) { s.callLog = cl } }

// WithSignatureValidator rejects provider webhooks without a valid
// X-Twilio-Signature.
func WithSignatureValidator(v *telephony.SignatureValidator) ServerOption {
	return func(s *Server) { s.signatures = v }
}

// New creates a new gateway server.
func New(cfg config.Config, orch *agent.Orchestrator, log *logging.Logger, opts ...ServerOption) *Server {
	allowedOrigins := cfg.Server.AllowedOrigins
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Server),
		log:         log.Sub("gateway"),
		orch:        orch,
		clients:     NewClientRegistry(log.Sub("monitor")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	s.bridgeHooks()
	return s
}

// bridgeHooks forwards hook events to monitors and the call log.
func (s *Server) bridgeHooks() {
	if s.hooks == nil {
		return
	}
	s.hooks.OnEach(hooks.AllEvents, "gateway.monitor", func(ctx context.Context, p hooks.Payload) error {
		s.clients.Broadcast(p.Event, p, s.eventSeq.Add(1))
		return nil
	})
	if s.callLog == nil {
		return
	}
	s.hooks.On(hooks.EventCallStart, "gateway.calllog", func(ctx context.Context, p hooks.Payload) error {
		return s.callLog.RecordStart(p.CallID(), domain.CallMeta{
			To:         p.String("prospect"),
			From:       p.String("caller"),
			CallStatus: "in-progress",
		})
	})
	s.hooks.On(hooks.EventTurn, "gateway.calllog", func(ctx context.Context, p hooks.Payload) error {
		return s.callLog.RecordTurn(p.CallID())
	})
	s.hooks.On(hooks.EventCallEnd, "gateway.calllog", func(ctx context.Context, p hooks.Payload) error {
		return s.callLog.RecordEnd(p.CallID(), domain.Disposition(p.String("disposition")), p.String("reason"))
	})
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.metrics, s.cfg.Server.AllowedOrigins)
}

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Start serves until ctx is cancelled, then drains monitors and in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Addr:         ln.Addr().String(),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     s.log.Sub("http").Std(zerolog.WarnLevel),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Str("bind", s.cfg.Server.Bind).
		Str("publicBaseUrl", s.cfg.Server.PublicBaseURL).
		Bool("signatures", s.signatures != nil).
		Int("methods", len(s.handlers)).
		Msg("server starting")
	s.emit(ctx, hooks.EventServerStart, map[string]any{"addr": s.httpServer.Addr})

	go s.cleanupLoop(ctx)
	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) shutdown() {
	s.log.Info().Msg("shutting down server")
	s.emit(context.Background(), hooks.EventServerStop, nil)
	s.clients.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("forced shutdown")
	}
}

func (s *Server) emit(ctx context.Context, event string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.Emit(ctx, event, data)
	}
}

// cleanupLoop prunes stale auth failures every minute.
func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.authLimiter.cleanup()
		}
	}
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
