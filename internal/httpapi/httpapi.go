// Package httpapi exposes the process over HTTP: a chi router providing
// the WebSocket upgrade endpoint, health and metrics probes. Router
// wiring follows ashureev-shsh-labs' cmd/server/main.go (chi +
// chi/middleware + promhttp), generalized to this module's session
// lifecycle instead of the teacher's session.go dispatch loop.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/auth"
	"github.com/relaywire/chat/internal/dispatcher"
	"github.com/relaywire/chat/internal/metrics"
	"github.com/relaywire/chat/internal/ratelimit"
	"github.com/relaywire/chat/internal/registry"
	"github.com/relaywire/chat/internal/session"
	"github.com/relaywire/chat/internal/store"
)

// Config bundles the tunables the session-accept path needs from the
// process configuration.
type Config struct {
	SendQueueSize        int
	MaxFrameBytes        int
	FrameFaultRatePerSec float64
	FrameFaultBurst      int
}

// Server wires the Auth Gate, Connection Registry and Protocol
// Dispatcher into an http.Handler.
type Server struct {
	gate       *auth.Gate
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	store      store.Adapter
	metrics    *metrics.Metrics
	log        *zap.Logger
	cfg        Config

	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the HTTP server. promReg is the Prometheus registerer
// metrics were constructed against; /metrics serves it when it can also
// gather (as the default registry can), else prometheus.DefaultGatherer.
func New(gate *auth.Gate, reg *registry.Registry, disp *dispatcher.Dispatcher, st store.Adapter, m *metrics.Metrics, promReg prometheus.Registerer, cfg Config, log *zap.Logger) *Server {
	s := &Server{
		gate:       gate,
		registry:   reg,
		dispatcher: disp,
		store:      st,
		metrics:    m,
		log:        log,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers attach an Origin header on cross-origin WebSocket
			// upgrades; the Auth Gate is the real access control, not Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if g, ok := promReg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store unreachable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleWebSocket is the Auth Gate + connection-accept path of §4.2:
// the bearer credential travels as a query parameter because the
// WebSocket handshake cannot carry a custom Authorization header from
// a browser client. §4.2/§6 describe authentication failure as a
// protocol-level close code, which only exists once the handshake has
// completed — so the upgrade happens unconditionally and a bad token is
// reported by closing the freshly-opened connection with code 4001.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	uid, authErr := s.gate.Verify(token)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("httpapi: upgrade failed", zap.Error(err))
		return
	}

	if authErr != nil {
		reason := auth.ClassifyConnectError(authErr)
		s.log.Info("httpapi: connect rejected", zap.Int("reason", int(reason)))
		closeMsg := websocket.FormatCloseMessage(4001, reason.String())
		ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		ws.Close()
		return
	}

	device := r.URL.Query().Get("device")
	sess := session.New(uuid.NewString(), ws, uid, device, s.cfg.SendQueueSize, s.log)

	ctx := r.Context()
	s.registry.Attach(sess)
	s.metrics.SessionsActive.Inc()
	s.dispatcher.BroadcastOnline(ctx, uid)
	s.dispatcher.TouchPresence(ctx, uid)

	go sess.WritePump()
	s.runSession(sess)
}

// runSession blocks in the read pump, routing every inbound frame
// through the dispatcher in receive order, and tears the session down
// on disconnect (§4.1, §5). It outlives the upgrade request, so it uses
// its own background context rather than the request's.
func (s *Server) runSession(sess *session.Session) {
	limiter := ratelimit.NewFrameFaultLimiter(s.cfg.FrameFaultRatePerSec, s.cfg.FrameFaultBurst)
	ctx := context.Background()

	sess.ReadPump(int64(s.cfg.MaxFrameBytes), func(raw []byte) {
		s.dispatcher.HandleFrame(ctx, sess, raw, limiter)
	})

	s.dispatcher.TouchPresence(ctx, sess.UserID())
	s.metrics.SessionsActive.Dec()
	s.registry.Detach(ctx, sess)
}
