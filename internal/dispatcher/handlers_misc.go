package dispatcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/apperr"
	"github.com/relaywire/chat/internal/ratelimit"
	"github.com/relaywire/chat/internal/session"
	"github.com/relaywire/chat/internal/store"
	"github.com/relaywire/chat/internal/wire"
)

// handleTyping forwards a typing signal immediately on the
// conversation topic with the sender's userId attached. Never
// persisted (§4.8).
func (d *Dispatcher) handleTyping(ctx context.Context, sess *session.Session, req *wire.Typing, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil {
		d.rejectFrame(sess, limiter, "typing requires a conversationId")
		return
	}
	if _, err := d.store.MembershipGet(ctx, req.ConversationID, sess.UserID()); err != nil {
		// Silently drop: typing carries no ack, so there's nothing to
		// report to an unauthorised sender beyond not forwarding it.
		return
	}

	d.publishToConversation(ctx, req.ConversationID, &wire.ServerEvent{
		Type: wire.TypeTypingEvent,
		Typing: &wire.TypingEvent{
			ConversationID: req.ConversationID,
			UserID:         sess.UserID(),
			IsTyping:       req.IsTyping,
		},
	})
}

// handleRead implements the Read transition of §4.4: verify
// membership, advance the read cursor, set read_at (and delivered_at
// if still null) under its NULL guard, and broadcast exactly once.
func (d *Dispatcher) handleRead(ctx context.Context, sess *session.Session, req *wire.Read, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil {
		d.rejectFrame(sess, limiter, "read requires conversationId and messageId")
		return
	}

	if _, err := d.store.MembershipGet(ctx, req.ConversationID, sess.UserID()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.sendError(sess, apperr.Forbidden, "not a member of this conversation")
			return
		}
		d.sendError(sess, apperr.Internal, "membership lookup failed")
		return
	}

	if err := d.store.MembershipSetLastRead(ctx, req.ConversationID, sess.UserID(), req.MessageID); err != nil {
		d.log.Error("dispatcher: set last read failed", zap.Error(err))
		d.sendError(sess, apperr.Internal, "read persist failed")
		return
	}

	d.touchPresence(ctx, sess.UserID())

	now := d.clock()
	ok, err := d.store.MessageSetRead(ctx, req.MessageID, now)
	if err != nil {
		d.log.Error("dispatcher: set read failed", zap.Error(err))
		d.sendError(sess, apperr.Internal, "read persist failed")
		return
	}
	if !ok {
		// Idempotent no-op: already read, no further broadcast (§4.4, §8 S6).
		return
	}

	d.metrics.ReadReceipts.Inc()
	d.publishToConversation(ctx, req.ConversationID, &wire.ServerEvent{
		Type: wire.TypeReadReceipt,
		ReadReceipt: &wire.ReadReceipt{
			ConversationID: req.ConversationID,
			UserID:         sess.UserID(),
			MessageID:      req.MessageID,
			ReadAt:         now,
		},
	})
}

// handleReact implements the Reaction Store's upsert/remove (§4.8): a
// nil emoji removes the reacting user's reaction, a non-nil emoji
// upserts it, replacing any prior emoji for that (message, user).
func (d *Dispatcher) handleReact(ctx context.Context, sess *session.Session, req *wire.React, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil {
		d.rejectFrame(sess, limiter, "react requires a messageId")
		return
	}

	msg, err := d.store.MessageGet(ctx, req.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.sendError(sess, apperr.NotFound, "message not found")
			return
		}
		d.sendError(sess, apperr.Internal, "message lookup failed")
		return
	}
	if _, err := d.store.MembershipGet(ctx, msg.ConversationID, sess.UserID()); err != nil {
		d.sendError(sess, apperr.Forbidden, "not a member of this conversation")
		return
	}

	if req.Emoji == nil {
		if err := d.store.ReactionDelete(ctx, req.MessageID, sess.UserID()); err != nil {
			d.sendError(sess, apperr.Internal, "reaction removal failed")
			return
		}
	} else {
		if err := d.store.ReactionUpsert(ctx, &store.Reaction{
			MessageID: req.MessageID,
			UserID:    sess.UserID(),
			Emoji:     *req.Emoji,
			CreatedAt: d.clock(),
		}); err != nil {
			d.sendError(sess, apperr.Internal, "reaction persist failed")
			return
		}
	}

	d.metrics.ReactionsUpdated.Inc()
	d.publishToConversation(ctx, msg.ConversationID, &wire.ServerEvent{
		Type: wire.TypeReactionUpdated,
		ReactionUpdated: &wire.ReactionUpdated{
			MessageID:      req.MessageID,
			ConversationID: msg.ConversationID,
			UserID:         sess.UserID(),
			Emoji:          req.Emoji,
		},
	})
}
