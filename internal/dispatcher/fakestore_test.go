package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaywire/chat/internal/store"
)

// fakeStore is an in-memory store.Adapter used to exercise the
// dispatcher's state-machine transitions without a Postgres instance,
// mirroring the teacher's own preference for a pluggable store.Adapter.
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*store.User
	conversations map[uuid.UUID]*store.Conversation
	memberships   map[string]*store.Membership // conversationID|userID
	messages      map[uuid.UUID]*store.Message
	reactions     map[string]*store.Reaction // messageID|userID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[uuid.UUID]*store.User),
		conversations: make(map[uuid.UUID]*store.Conversation),
		memberships:   make(map[string]*store.Membership),
		messages:      make(map[uuid.UUID]*store.Message),
		reactions:     make(map[string]*store.Reaction),
	}
}

func membershipKey(conversationID, userID uuid.UUID) string {
	return conversationID.String() + "|" + userID.String()
}

func reactionKey(messageID, userID uuid.UUID) string {
	return messageID.String() + "|" + userID.String()
}

func (s *fakeStore) Open(ctx context.Context) error  { return nil }
func (s *fakeStore) Close() error                    { return nil }
func (s *fakeStore) Ping(ctx context.Context) error  { return nil }

func (s *fakeStore) UserCreate(ctx context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeStore) UserGet(ctx context.Context, id uuid.UUID) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) UserTouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		u = &store.User{ID: id}
		s.users[id] = u
	}
	u.LastSeenAt = at
	return nil
}

func (s *fakeStore) ConversationCreate(ctx context.Context, c *store.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversations[c.ID] = &cp
	return nil
}

func (s *fakeStore) ConversationGet(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) MembershipGet(ctx context.Context, conversationID, userID uuid.UUID) (*store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(conversationID, userID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) MembershipsForConversation(ctx context.Context, conversationID uuid.UUID) ([]store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Membership
	for _, m := range s.memberships {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) MembershipUpsert(ctx context.Context, m *store.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.memberships[membershipKey(m.ConversationID, m.UserID)] = &cp
	return nil
}

func (s *fakeStore) MembershipSetLastRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(conversationID, userID)]
	if !ok {
		return store.ErrNotFound
	}
	id := messageID
	m.LastReadMessageID = &id
	return nil
}

func (s *fakeStore) MessageUpsert(ctx context.Context, msg *store.Message) (*store.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.messages[msg.ID]; ok {
		if existing.SenderID != msg.SenderID || existing.ConversationID != msg.ConversationID {
			return nil, false, store.ErrConflict
		}
		cp := *existing
		return &cp, false, nil
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	out := cp
	return &out, true, nil
}

func (s *fakeStore) MessageGet(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) MessageEdit(ctx context.Context, id uuid.UUID, content string, at time.Time) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.Content = &content
	m.EditedAt = &at
	cp := *m
	return &cp, nil
}

func (s *fakeStore) MessageSoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.DeletedAt = &at
	cp := *m
	return &cp, nil
}

func (s *fakeStore) MessageSetDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if m.DeliveredAt != nil {
		return false, nil
	}
	m.DeliveredAt = &at
	return true, nil
}

func (s *fakeStore) MessageSetRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if m.ReadAt != nil {
		return false, nil
	}
	if m.DeliveredAt == nil {
		m.DeliveredAt = &at
	}
	m.ReadAt = &at
	return true, nil
}

func (s *fakeStore) MessagesForConversation(ctx context.Context, conversationID uuid.UUID, sinceID *uuid.UUID, limit int) ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) UndeliveredForRecipient(ctx context.Context, conversationID, recipient uuid.UUID) ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.DeliveredAt == nil && m.SenderID != recipient {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) ReactionUpsert(ctx context.Context, r *store.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reactions[reactionKey(r.MessageID, r.UserID)] = &cp
	return nil
}

func (s *fakeStore) ReactionDelete(ctx context.Context, messageID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reactions, reactionKey(messageID, userID))
	return nil
}

func (s *fakeStore) ReactionsForMessage(ctx context.Context, messageID uuid.UUID) ([]store.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Reaction
	for _, r := range s.reactions {
		if r.MessageID == messageID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) AttachmentCreate(ctx context.Context, a *store.Attachment) error { return nil }

func (s *fakeStore) AttachmentsForMessage(ctx context.Context, messageID uuid.UUID) ([]store.Attachment, error) {
	return nil, nil
}

func (s *fakeStore) RefreshCredentialCreate(ctx context.Context, c *store.RefreshCredential) error {
	return nil
}

func (s *fakeStore) RefreshCredentialGet(ctx context.Context, id uuid.UUID) (*store.RefreshCredential, error) {
	return nil, store.ErrNotFound
}

func (s *fakeStore) RefreshCredentialRevoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (s *fakeStore) InviteTokenCreate(ctx context.Context, inv *store.InviteToken) error { return nil }

func (s *fakeStore) InviteTokenGet(ctx context.Context, token uuid.UUID) (*store.InviteToken, error) {
	return nil, store.ErrNotFound
}

var _ store.Adapter = (*fakeStore)(nil)
