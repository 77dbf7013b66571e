package dispatcher

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/wire"
)

// TouchPresence bumps uid's last_seen_at (§3, §4.6). httpapi calls this
// exported wrapper at the connect/disconnect edges, where it has no
// wire.ClientEvent to dispatch. Among client events, only subscribe,
// read and a send_message that inserts a new row bump it (via the
// unexported touchPresence helper); ping, typing, edit, delete, react,
// unsubscribe and a retried send do not.
func (d *Dispatcher) TouchPresence(ctx context.Context, uid uuid.UUID) {
	d.touchPresence(ctx, uid)
}

// BroadcastOnline fans a presence "online" transition out to every
// conversation uid belongs to. Called on session attach (§4.6); the
// registry itself never broadcasts, it only tracks sockets.
func (d *Dispatcher) BroadcastOnline(ctx context.Context, uid uuid.UUID) {
	d.broadcastPresence(ctx, uid, "online")
}

// BroadcastOffline is wired as registry.OnUserOffline: fired once a
// user's last local session detaches. Remote instances reach the same
// conclusion independently once last_seen_at ages past the freshness
// window, so this is a latency optimisation, not the source of truth.
func (d *Dispatcher) BroadcastOffline(ctx context.Context, uid uuid.UUID) {
	d.broadcastPresence(ctx, uid, "offline")
}

func (d *Dispatcher) broadcastPresence(ctx context.Context, uid uuid.UUID, status string) {
	memberships, err := d.store.MembershipsForUser(ctx, uid)
	if err != nil {
		d.log.Error("dispatcher: presence fan-out lookup failed", zap.Error(err))
		return
	}

	now := d.clock()
	ev := &wire.ServerEvent{
		Type: wire.TypePresence,
		Presence: &wire.Presence{
			UserID:     uid,
			Status:     status,
			LastSeenAt: now,
		},
	}
	for _, m := range memberships {
		d.publishToConversation(ctx, m.ConversationID, ev)
	}
}
