package dispatcher

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/ratelimit"
	"github.com/relaywire/chat/internal/session"
	"github.com/relaywire/chat/internal/store"
	"github.com/relaywire/chat/internal/wire"
)

func (d *Dispatcher) handleSubscribe(ctx context.Context, sess *session.Session, req *wire.Subscribe, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil || len(req.ConversationIDs) == 0 {
		d.rejectFrame(sess, limiter, "subscribe requires conversationIds")
		return
	}

	var authorized []uuid.UUID
	for _, convID := range req.ConversationIDs {
		if _, err := d.store.MembershipGet(ctx, convID, sess.UserID()); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				d.log.Error("dispatcher: membership lookup failed", zap.Error(err))
			}
			continue
		}
		authorized = append(authorized, convID)
	}

	if err := d.registry.Subscribe(ctx, sess, authorized); err != nil {
		d.log.Error("dispatcher: registry subscribe failed", zap.Error(err))
		return
	}

	d.touchPresence(ctx, sess.UserID())

	// Reconnect reconciliation (§4.7): any message the user hasn't
	// been marked delivered for yet, in a conversation they're now
	// (re)subscribed to, gets delivered_at set on first observation.
	for _, convID := range authorized {
		d.reconcileDelivery(ctx, convID, sess.UserID())
	}
}

func (d *Dispatcher) handleUnsubscribe(ctx context.Context, sess *session.Session, req *wire.Unsubscribe, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil || len(req.ConversationIDs) == 0 {
		d.rejectFrame(sess, limiter, "unsubscribe requires conversationIds")
		return
	}
	if err := d.registry.Unsubscribe(ctx, sess, req.ConversationIDs); err != nil {
		d.log.Error("dispatcher: registry unsubscribe failed", zap.Error(err))
	}
}

// reconcileDelivery implements §4.7's "on reconnect" pass for a single
// conversation: every message undelivered to uid that uid didn't send
// is marked delivered now and the receipt is broadcast.
func (d *Dispatcher) reconcileDelivery(ctx context.Context, conversationID, uid uuid.UUID) {
	conv, err := d.store.ConversationGet(ctx, conversationID)
	if err != nil {
		d.log.Error("dispatcher: conversation lookup failed", zap.Error(err))
		return
	}
	if conv.Variant == store.ConversationChannel {
		// §4.4: channels never produce delivery receipts.
		return
	}

	msgs, err := d.store.UndeliveredForRecipient(ctx, conversationID, uid)
	if err != nil {
		d.log.Error("dispatcher: undelivered lookup failed", zap.Error(err))
		return
	}

	now := d.clock()
	for _, msg := range msgs {
		ok, err := d.store.MessageSetDelivered(ctx, msg.ID, now)
		if err != nil {
			d.log.Error("dispatcher: set delivered failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		d.metrics.DeliveryReceipts.Inc()
		d.publishToConversation(ctx, conversationID, &wire.ServerEvent{
			Type: wire.TypeDeliveryReceipt,
			DeliveryReceipt: &wire.DeliveryReceipt{
				ConversationID: conversationID,
				MessageID:      msg.ID,
				DeliveredAt:    now,
			},
		})
	}
}

func (d *Dispatcher) touchPresence(ctx context.Context, uid uuid.UUID) {
	if err := d.presence.Touch(ctx, uid); err != nil {
		d.log.Warn("dispatcher: presence touch failed", zap.Error(err))
	}
}
