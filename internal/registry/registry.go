// Package registry implements the Connection Registry: a per-instance,
// process-local index of live sessions by user and by subscribed
// conversation. It is the only thing that knows which sockets to write
// to on this instance (§4.1) and never persists state.
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/bus"
)

// Conn is the minimal session surface the registry needs: identity and
// a non-blocking write. internal/session.Session implements this.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	Send(payload []byte) bool
}

// Registry holds the two indices described in spec.md §4.1. Both maps
// are guarded by a single RWMutex: there is no per-user or
// per-conversation lock, so writers to unrelated keys contend with each
// other.
type Registry struct {
	bus bus.Bus
	log *zap.Logger

	mu             sync.RWMutex
	byUser         map[uuid.UUID]map[string]Conn
	byConversation map[uuid.UUID]map[string]Conn

	// OnUserOffline is invoked (outside any lock) when a user's last
	// local session detaches. The caller (dispatcher) broadcasts the
	// presence transition; remote instances reach the same conclusion
	// independently from last_seen_at, per §4.6.
	OnUserOffline func(ctx context.Context, userID uuid.UUID)
}

// New returns a Registry driving subscribe/unsubscribe on b.
func New(b bus.Bus, log *zap.Logger) *Registry {
	return &Registry{
		bus:            b,
		log:            log,
		byUser:         make(map[uuid.UUID]map[string]Conn),
		byConversation: make(map[uuid.UUID]map[string]Conn),
	}
}

// Attach registers a session after auth succeeds (§4.1).
func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid := c.UserID()
	set := r.byUser[uid]
	if set == nil {
		set = make(map[string]Conn)
		r.byUser[uid] = set
	}
	set[c.ID()] = c
}

// Subscribe adds c to each conversation's local index. Callers must
// have already checked membership (§4.1); the first local subscriber
// to a topic triggers a Fan-out Bus subscription.
func (r *Registry) Subscribe(ctx context.Context, c Conn, conversations []uuid.UUID) error {
	for _, convID := range conversations {
		if err := r.subscribeOne(ctx, c, convID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) subscribeOne(ctx context.Context, c Conn, convID uuid.UUID) error {
	r.mu.Lock()
	set := r.byConversation[convID]
	firstSubscriber := set == nil
	if firstSubscriber {
		set = make(map[string]Conn)
		r.byConversation[convID] = set
	}
	set[c.ID()] = c
	r.mu.Unlock()

	if !firstSubscriber {
		return nil
	}

	topic := bus.TopicForConversation(convID.String())
	return r.bus.Subscribe(ctx, topic, func(payload []byte) {
		r.fanOutLocal(convID, payload)
	})
}

func (r *Registry) fanOutLocal(convID uuid.UUID, payload []byte) {
	r.mu.RLock()
	set := r.byConversation[convID]
	conns := make([]Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Send(payload)
	}
}

// Unsubscribe removes c from each conversation's local index; when a
// topic's local set becomes empty, the bus subscription is released.
func (r *Registry) Unsubscribe(ctx context.Context, c Conn, conversations []uuid.UUID) error {
	for _, convID := range conversations {
		if err := r.unsubscribeOne(ctx, c, convID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) unsubscribeOne(ctx context.Context, c Conn, convID uuid.UUID) error {
	r.mu.Lock()
	set := r.byConversation[convID]
	becameEmpty := false
	if set != nil {
		delete(set, c.ID())
		if len(set) == 0 {
			delete(r.byConversation, convID)
			becameEmpty = true
		}
	}
	r.mu.Unlock()

	if !becameEmpty {
		return nil
	}
	return r.bus.Unsubscribe(ctx, bus.TopicForConversation(convID.String()))
}

// Detach removes c from both indices on close, releasing every topic
// subscription it still held and firing OnUserOffline if this was the
// user's last local session.
func (r *Registry) Detach(ctx context.Context, c Conn) {
	r.mu.Lock()
	uid := c.UserID()
	if set := r.byUser[uid]; set != nil {
		delete(set, c.ID())
		if len(set) == 0 {
			delete(r.byUser, uid)
		}
	}

	var emptied []uuid.UUID
	for convID, set := range r.byConversation {
		if _, ok := set[c.ID()]; ok {
			delete(set, c.ID())
			if len(set) == 0 {
				delete(r.byConversation, convID)
				emptied = append(emptied, convID)
			}
		}
	}
	_, stillOnline := r.byUser[uid]
	r.mu.Unlock()

	for _, convID := range emptied {
		if err := r.bus.Unsubscribe(ctx, bus.TopicForConversation(convID.String())); err != nil {
			r.log.Warn("registry: unsubscribe on detach failed", zap.String("conversation", convID.String()), zap.Error(err))
		}
	}

	if !stillOnline && r.OnUserOffline != nil {
		r.OnUserOffline(ctx, uid)
	}
}

// IsUserLocallyOnline reports whether uid has at least one session
// attached to this instance.
func (r *Registry) IsUserLocallyOnline(uid uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[uid]) > 0
}

// LocalSubscriberCount reports how many local sessions are subscribed
// to convID; used by tests.
func (r *Registry) LocalSubscriberCount(convID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConversation[convID])
}
