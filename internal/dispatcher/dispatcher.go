// Package dispatcher implements the Protocol Dispatcher: parses framed
// client events, authorises and persists each against the Durable
// Store, acknowledges the sender, and publishes to the Fan-out Bus —
// the five-step template of spec.md §4.3.
package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/apperr"
	"github.com/relaywire/chat/internal/bus"
	"github.com/relaywire/chat/internal/metrics"
	"github.com/relaywire/chat/internal/presence"
	"github.com/relaywire/chat/internal/ratelimit"
	"github.com/relaywire/chat/internal/registry"
	"github.com/relaywire/chat/internal/session"
	"github.com/relaywire/chat/internal/store"
	"github.com/relaywire/chat/internal/wire"
)

// Config bundles the tunables the dispatcher needs from the process
// configuration without depending on the config package directly.
type Config struct {
	EditWindow     time.Duration
	PresenceWindow time.Duration
}

// Dispatcher wires the Message State Machine, Reaction Store, Typing
// Relay and Presence Tracker together. One instance is shared by every
// session on the process.
type Dispatcher struct {
	store    store.Adapter
	bus      bus.Bus
	registry *registry.Registry
	presence *presence.Tracker
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      Config

	now func() time.Time
}

// New builds a Dispatcher. now defaults to time.Now; tests may override.
func New(s store.Adapter, b bus.Bus, reg *registry.Registry, pres *presence.Tracker, m *metrics.Metrics, cfg Config, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: s, bus: b, registry: reg, presence: pres, metrics: m, cfg: cfg, log: log, now: time.Now}
}

func (d *Dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// HandleFrame parses one inbound frame and routes it to its handler.
// A frame that fails to parse is reported as a single error event; the
// session is only closed if limiter judges the fault rate excessive
// (§4.3). Frames are expected to be handled one at a time by the
// caller (the session's read pump), preserving receive order.
func (d *Dispatcher) HandleFrame(ctx context.Context, sess *session.Session, raw []byte, limiter *ratelimit.FrameFaultLimiter) {
	var ev wire.ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		d.rejectFrame(sess, limiter, "malformed frame")
		return
	}

	switch ev.Type {
	case wire.TypePing:
		d.handlePing(sess)
	case wire.TypeSubscribe:
		d.handleSubscribe(ctx, sess, ev.Subscribe, limiter)
	case wire.TypeUnsubscribe:
		d.handleUnsubscribe(ctx, sess, ev.Unsubscribe, limiter)
	case wire.TypeSendMessage:
		d.handleSendMessage(ctx, sess, ev.SendMessage, limiter)
	case wire.TypeEditMessage:
		d.handleEditMessage(ctx, sess, ev.EditMessage, limiter)
	case wire.TypeDeleteMsg:
		d.handleDeleteMessage(ctx, sess, ev.DeleteMsg, limiter)
	case wire.TypeTyping:
		d.handleTyping(ctx, sess, ev.Typing, limiter)
	case wire.TypeRead:
		d.handleRead(ctx, sess, ev.Read, limiter)
	case wire.TypeReact:
		d.handleReact(ctx, sess, ev.React, limiter)
	default:
		// Unknown event variants are logged and ignored (§4.3).
		d.log.Info("dispatcher: unknown event type", zap.String("type", ev.Type), zap.String("session", sess.ID()))
	}
}

func (d *Dispatcher) rejectFrame(sess *session.Session, limiter *ratelimit.FrameFaultLimiter, msg string) {
	d.metrics.FramesRejected.Inc()
	d.sendError(sess, apperr.Invalid, msg)
	if !limiter.Allow() {
		d.metrics.SessionsClosedBad.Inc()
		sess.Close()
	}
}

func (d *Dispatcher) sendError(sess *session.Session, code apperr.Code, msg string) {
	payload, err := wire.Encode(&wire.ServerEvent{
		Type:  wire.TypeError,
		Error: &wire.ErrorEvent{Code: string(code), Message: msg},
	})
	if err != nil {
		d.log.Error("dispatcher: encode error event failed", zap.Error(err))
		return
	}
	sess.Send(payload)
}

// publishToConversation marshals ev and publishes it on the
// conversation's topic. Failures are logged, not propagated — the
// persisted state is already the truth of record (§4.3, §7).
func (d *Dispatcher) publishToConversation(ctx context.Context, conversationID uuid.UUID, ev *wire.ServerEvent) {
	payload, err := wire.Encode(ev)
	if err != nil {
		d.log.Error("dispatcher: encode server event failed", zap.Error(err))
		return
	}
	topic := bus.TopicForConversation(conversationID.String())
	if err := d.bus.Publish(ctx, topic, payload); err != nil {
		d.metrics.BusPublishErrors.Inc()
		d.log.Warn("dispatcher: bus publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (d *Dispatcher) handlePing(sess *session.Session) {
	payload, err := wire.Encode(&wire.ServerEvent{Type: wire.TypePong})
	if err != nil {
		return
	}
	sess.Send(payload)
}
