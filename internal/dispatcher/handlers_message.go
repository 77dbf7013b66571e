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

var validMessageVariants = map[string]store.MessageVariant{
	"text":  store.MessageText,
	"image": store.MessageImage,
	"video": store.MessageVideo,
	"voice": store.MessageVoice,
}

// handleSendMessage implements the Send transition of §4.4: validate,
// authorise, persist via an idempotent upsert keyed on the client-
// chosen id, ack, and — only for the insert case — broadcast
// new_message and evaluate the Delivered transition.
func (d *Dispatcher) handleSendMessage(ctx context.Context, sess *session.Session, req *wire.SendMessage, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil {
		d.rejectFrame(sess, limiter, "send_message requires a payload")
		return
	}

	variant, ok := validMessageVariants[req.Type]
	if !ok {
		d.ackError(sess, req.ID, apperr.Invalid, "unknown message type")
		return
	}
	if variant == store.MessageText && (req.Content == nil || *req.Content == "") {
		d.ackError(sess, req.ID, apperr.Invalid, "text messages require content")
		return
	}

	membership, err := d.store.MembershipGet(ctx, req.ConversationID, sess.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.ackError(sess, req.ID, apperr.Forbidden, "not a member of this conversation")
			return
		}
		d.ackError(sess, req.ID, apperr.Internal, "membership lookup failed")
		return
	}
	conv, err := d.store.ConversationGet(ctx, req.ConversationID)
	if err != nil {
		d.ackError(sess, req.ID, apperr.Internal, "conversation lookup failed")
		return
	}
	if !membership.CanSend(conv.Variant) {
		d.ackError(sess, req.ID, apperr.Forbidden, "only admins may post to this channel")
		return
	}

	now := d.clock()
	msg := &store.Message{
		ID:             req.ID,
		ConversationID: req.ConversationID,
		SenderID:       sess.UserID(),
		Content:        req.Content,
		Variant:        variant,
		ReplyToID:      req.ReplyToID,
		AttachmentIDs:  req.AttachmentIDs,
		CreatedAt:      now,
	}

	stored, inserted, err := d.store.MessageUpsert(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			d.ackError(sess, req.ID, apperr.Conflict, "message id already used by a different sender or conversation")
			return
		}
		d.ackError(sess, req.ID, apperr.Internal, "persist failed")
		return
	}

	// Ack is written directly to the originating session before
	// publish, so it always precedes any new_message echo arriving via
	// the bus on the sender's other sessions (§5 ordering guarantee).
	d.ackOK(sess, req.ID, stored.CreatedAt)

	if !inserted {
		// Idempotent retry: exactly one row, no further broadcast (§4.4, §8 S2).
		return
	}

	d.touchPresence(ctx, sess.UserID())
	d.metrics.MessagesSent.Inc()

	view := d.buildMessageView(ctx, stored)
	d.publishToConversation(ctx, req.ConversationID, &wire.ServerEvent{
		Type:       wire.TypeNewMessage,
		NewMessage: &wire.NewMessage{Message: view},
	})

	if conv.Variant == store.ConversationChannel {
		// §4.4/§8 invariant 5: channels never produce delivery receipts.
		return
	}
	d.evaluateDelivery(ctx, conv, stored)
}

// evaluateDelivery implements the Delivered transition: if at least one
// other member is currently online (locally or, transitively, via the
// store's last_seen_at), set delivered_at under its NULL guard and
// broadcast the receipt.
func (d *Dispatcher) evaluateDelivery(ctx context.Context, conv *store.Conversation, msg *store.Message) {
	members, err := d.store.MembershipsForConversation(ctx, conv.ID)
	if err != nil {
		d.log.Error("dispatcher: members lookup failed", zap.Error(err))
		return
	}

	anyOnline := false
	for _, m := range members {
		if m.UserID == msg.SenderID {
			continue
		}
		if d.registry.IsUserLocallyOnline(m.UserID) {
			anyOnline = true
			break
		}
		if online, _, err := d.presence.IsOnline(ctx, m.UserID); err == nil && online {
			anyOnline = true
			break
		}
	}
	if !anyOnline {
		return
	}

	now := d.clock()
	ok, err := d.store.MessageSetDelivered(ctx, msg.ID, now)
	if err != nil {
		d.log.Error("dispatcher: set delivered failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	d.metrics.DeliveryReceipts.Inc()
	d.publishToConversation(ctx, conv.ID, &wire.ServerEvent{
		Type: wire.TypeDeliveryReceipt,
		DeliveryReceipt: &wire.DeliveryReceipt{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			DeliveredAt:    now,
		},
	})
}

func (d *Dispatcher) handleEditMessage(ctx context.Context, sess *session.Session, req *wire.EditMessage, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil || req.Content == "" {
		d.rejectFrame(sess, limiter, "edit_message requires content")
		return
	}

	msg, err := d.store.MessageGet(ctx, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.ackError(sess, req.ID, apperr.NotFound, "message not found")
			return
		}
		d.ackError(sess, req.ID, apperr.Internal, "message lookup failed")
		return
	}

	if msg.SenderID != sess.UserID() {
		d.ackError(sess, req.ID, apperr.Forbidden, "only the sender may edit this message")
		return
	}
	if !msg.Editable(sess.UserID(), d.clock(), d.cfg.EditWindow) {
		d.ackError(sess, req.ID, apperr.Conflict, "message is no longer editable")
		return
	}

	now := d.clock()
	updated, err := d.store.MessageEdit(ctx, req.ID, req.Content, now)
	if err != nil {
		d.ackError(sess, req.ID, apperr.Internal, "edit persist failed")
		return
	}

	d.ackOK(sess, req.ID, now)
	d.metrics.MessagesEdited.Inc()
	d.publishToConversation(ctx, updated.ConversationID, &wire.ServerEvent{
		Type: wire.TypeMessageUpdated,
		MessageUpdated: &wire.MessageUpdated{
			ID:             updated.ID,
			ConversationID: updated.ConversationID,
			Content:        req.Content,
			EditedAt:       *updated.EditedAt,
		},
	})
}

func (d *Dispatcher) handleDeleteMessage(ctx context.Context, sess *session.Session, req *wire.DeleteMsg, limiter *ratelimit.FrameFaultLimiter) {
	if req == nil {
		d.rejectFrame(sess, limiter, "delete_message requires an id")
		return
	}

	msg, err := d.store.MessageGet(ctx, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.ackError(sess, req.ID, apperr.NotFound, "message not found")
			return
		}
		d.ackError(sess, req.ID, apperr.Internal, "message lookup failed")
		return
	}
	if msg.SenderID != sess.UserID() {
		d.ackError(sess, req.ID, apperr.Forbidden, "only the sender may delete this message")
		return
	}

	deleted, err := d.store.MessageSoftDelete(ctx, req.ID, d.clock())
	if err != nil {
		d.ackError(sess, req.ID, apperr.Internal, "delete persist failed")
		return
	}

	d.ackOK(sess, req.ID, d.clock())
	d.metrics.MessagesDeleted.Inc()
	d.publishToConversation(ctx, deleted.ConversationID, &wire.ServerEvent{
		Type: wire.TypeMessageDeleted,
		MessageDeleted: &wire.MessageDeleted{
			ID:             deleted.ID,
			ConversationID: deleted.ConversationID,
		},
	})
}

// buildMessageView assembles the wire representation of a freshly
// inserted message. Reactions are always empty at insert time; they
// are included for parity with the HTTP history contract (§4.7).
func (d *Dispatcher) buildMessageView(ctx context.Context, msg *store.Message) wire.MessageView {
	return wire.MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.VisibleContent(),
		Type:           string(msg.Variant),
		ReplyToID:      msg.ReplyToID,
		AttachmentIDs:  msg.AttachmentIDs,
		CreatedAt:      msg.CreatedAt,
		EditedAt:       msg.EditedAt,
		DeletedAt:      msg.DeletedAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
}
