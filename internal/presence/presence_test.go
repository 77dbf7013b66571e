package presence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/chat/internal/store"
)

// fakeStore is the minimal store.Adapter surface Tracker touches.
type fakeStore struct {
	users map[uuid.UUID]*store.User
}

func newFakeStore() *fakeStore { return &fakeStore{users: make(map[uuid.UUID]*store.User)} }

func (s *fakeStore) Open(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                   { return nil }
func (s *fakeStore) Ping(ctx context.Context) error { return nil }

func (s *fakeStore) UserCreate(ctx context.Context, u *store.User) error {
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeStore) UserGet(ctx context.Context, id uuid.UUID) (*store.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) UserTouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	u, ok := s.users[id]
	if !ok {
		u = &store.User{ID: id}
		s.users[id] = u
	}
	u.LastSeenAt = at
	return nil
}

func (s *fakeStore) ConversationCreate(ctx context.Context, c *store.Conversation) error { return nil }
func (s *fakeStore) ConversationGet(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) MembershipGet(ctx context.Context, conversationID, userID uuid.UUID) (*store.Membership, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) MembershipsForConversation(ctx context.Context, conversationID uuid.UUID) ([]store.Membership, error) {
	return nil, nil
}
func (s *fakeStore) MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]store.Membership, error) {
	return nil, nil
}
func (s *fakeStore) MembershipUpsert(ctx context.Context, m *store.Membership) error { return nil }
func (s *fakeStore) MembershipSetLastRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error {
	return nil
}
func (s *fakeStore) MessageUpsert(ctx context.Context, msg *store.Message) (*store.Message, bool, error) {
	return nil, false, nil
}
func (s *fakeStore) MessageGet(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) MessageEdit(ctx context.Context, id uuid.UUID, content string, at time.Time) (*store.Message, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) MessageSoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*store.Message, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) MessageSetDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}
func (s *fakeStore) MessageSetRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}
func (s *fakeStore) MessagesForConversation(ctx context.Context, conversationID uuid.UUID, sinceID *uuid.UUID, limit int) ([]store.Message, error) {
	return nil, nil
}
func (s *fakeStore) UndeliveredForRecipient(ctx context.Context, conversationID, recipient uuid.UUID) ([]store.Message, error) {
	return nil, nil
}
func (s *fakeStore) ReactionUpsert(ctx context.Context, r *store.Reaction) error { return nil }
func (s *fakeStore) ReactionDelete(ctx context.Context, messageID, userID uuid.UUID) error {
	return nil
}
func (s *fakeStore) ReactionsForMessage(ctx context.Context, messageID uuid.UUID) ([]store.Reaction, error) {
	return nil, nil
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

func TestTouchMarksUserOnline(t *testing.T) {
	s := newFakeStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := New(s, 30*time.Second)
	tr.now = func() time.Time { return now }

	uid := uuid.New()
	require.NoError(t, tr.Touch(context.Background(), uid))

	online, lastSeen, err := tr.IsOnline(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, now, lastSeen)
}

func TestIsOnlineExpiresPastWindow(t *testing.T) {
	s := newFakeStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := New(s, 30*time.Second)
	tr.now = func() time.Time { return now }

	uid := uuid.New()
	require.NoError(t, tr.Touch(context.Background(), uid))

	tr.now = func() time.Time { return now.Add(31 * time.Second) }
	online, _, err := tr.IsOnline(context.Background(), uid)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestIsOnlineUnknownUserErrors(t *testing.T) {
	s := newFakeStore()
	tr := New(s, 30*time.Second)

	_, _, err := tr.IsOnline(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
