// Package presence implements the Presence Tracker: derived online
// status computed from last_seen_at with a fixed freshness window
// (§4.6). No boolean is ever stored.
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relaywire/chat/internal/store"
)

// DefaultWindow is the freshness window spec.md §3 names (30s).
const DefaultWindow = 30 * time.Second

// Tracker bumps last_seen_at on activity and answers online queries by
// reading it back through the store — there is nothing to clean up on
// crash, a dead instance's users decay to offline on their own (§4.6).
type Tracker struct {
	store  store.Adapter
	window time.Duration
	now    func() time.Time
}

// New returns a Tracker with the given freshness window. now defaults
// to time.Now; tests may override it.
func New(s store.Adapter, window time.Duration) *Tracker {
	return &Tracker{store: s, window: window, now: time.Now}
}

// Touch bumps uid's last_seen_at to now. The dispatcher calls it on
// attach, detach, subscribe, read and a newly inserted send (§3); other
// client events do not bump it.
func (t *Tracker) Touch(ctx context.Context, uid uuid.UUID) error {
	return t.store.UserTouchLastSeen(ctx, uid, t.clock())
}

// IsOnline reports whether uid was active within the freshness window.
func (t *Tracker) IsOnline(ctx context.Context, uid uuid.UUID) (bool, time.Time, error) {
	u, err := t.store.UserGet(ctx, uid)
	if err != nil {
		return false, time.Time{}, err
	}
	return u.IsOnline(t.clock(), t.window), u.LastSeenAt, nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}
