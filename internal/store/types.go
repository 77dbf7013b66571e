// Package store defines the Durable Store's data model and the Adapter
// interface a concrete backend (internal/store/postgres) implements.
// The split mirrors the teacher's store/types + store/adapter packages.
package store

import (
	"time"

	"github.com/google/uuid"
)

// ConversationVariant enumerates conversation kinds.
type ConversationVariant string

const (
	ConversationDirect  ConversationVariant = "direct"
	ConversationGroup   ConversationVariant = "group"
	ConversationChannel ConversationVariant = "channel"
)

// MessageVariant enumerates message content kinds.
type MessageVariant string

const (
	MessageText   MessageVariant = "text"
	MessageImage  MessageVariant = "image"
	MessageVideo  MessageVariant = "video"
	MessageVoice  MessageVariant = "voice"
	MessageSystem MessageVariant = "system"
)

// Role enumerates a membership's role within a conversation.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is a stable account record. IsOnline is never persisted; it is
// always derived from LastSeenAt by the Presence Tracker.
type User struct {
	ID          uuid.UUID `db:"id"`
	DisplayName string    `db:"display_name"`
	AvatarURL   *string   `db:"avatar_url"`
	LastSeenAt  time.Time `db:"last_seen_at"`
	CreatedAt   time.Time `db:"created_at"`
}

// IsOnline reports whether the user is within the presence freshness
// window as of now.
func (u User) IsOnline(now time.Time, window time.Duration) bool {
	return now.Sub(u.LastSeenAt) < window
}

// Conversation is a room: direct, group, or channel.
type Conversation struct {
	ID        uuid.UUID           `db:"id"`
	Variant   ConversationVariant `db:"variant"`
	Name      *string             `db:"name"`
	CreatedAt time.Time           `db:"created_at"`
	UpdatedAt time.Time           `db:"updated_at"`
}

// Membership relates a user to a conversation with a role and read
// cursor. Unique per (ConversationID, UserID).
type Membership struct {
	ConversationID    uuid.UUID  `db:"conversation_id"`
	UserID            uuid.UUID  `db:"user_id"`
	Role              Role       `db:"role"`
	LastReadMessageID *uuid.UUID `db:"last_read_message_id"`
	JoinedAt          time.Time  `db:"joined_at"`
}

// CanSend reports whether a member with this role may post into a
// conversation of the given variant (only admins may post to channels).
func (m Membership) CanSend(v ConversationVariant) bool {
	if v == ConversationChannel {
		return m.Role == RoleAdmin
	}
	return true
}

// Message is the authoritative lifecycle record for one chat message.
// ID is client-chosen (a UUID) and is the idempotency key for Send.
type Message struct {
	ID             uuid.UUID      `db:"id"`
	ConversationID uuid.UUID      `db:"conversation_id"`
	SenderID       uuid.UUID      `db:"sender_id"`
	Content        *string        `db:"content"`
	Variant        MessageVariant `db:"variant"`
	ReplyToID      *uuid.UUID     `db:"reply_to_id"`
	AttachmentIDs  []uuid.UUID    `db:"-"`
	CreatedAt      time.Time      `db:"created_at"`
	EditedAt       *time.Time     `db:"edited_at"`
	DeletedAt      *time.Time     `db:"deleted_at"`
	DeliveredAt    *time.Time     `db:"delivered_at"`
	ReadAt         *time.Time     `db:"read_at"`
}

// VisibleContent returns Content unless the message has been
// soft-deleted, in which case content is inaccessible per §3.
func (m Message) VisibleContent() *string {
	if m.DeletedAt != nil {
		return nil
	}
	return m.Content
}

// Editable reports whether m may be edited by editor at the given
// instant: sender-only, text-only, within the edit window, not deleted.
func (m Message) Editable(editor uuid.UUID, now time.Time, window time.Duration) bool {
	if m.SenderID != editor {
		return false
	}
	if m.Variant != MessageText {
		return false
	}
	if m.DeletedAt != nil {
		return false
	}
	return now.Sub(m.CreatedAt) < window
}

// Reaction is a (message, user) upsert of an emoji. At most one row per
// (MessageID, UserID); removal (a nil emoji on the wire) deletes the
// row. An empty, non-nil emoji is not rejected and is stored as "".
type Reaction struct {
	MessageID uuid.UUID `db:"message_id"`
	UserID    uuid.UUID `db:"user_id"`
	Emoji     string    `db:"emoji"`
	CreatedAt time.Time `db:"created_at"`
}

// Attachment references an externally-stored blob linked to a message.
type Attachment struct {
	ID         uuid.UUID  `db:"id"`
	MessageID  *uuid.UUID `db:"message_id"`
	URL        string     `db:"url"`
	MimeType   string     `db:"mime_type"`
	SizeBytes  int64      `db:"size_bytes"`
	ThumbURL   *string    `db:"thumb_url"`
	Width      *int       `db:"width"`
	Height     *int       `db:"height"`
	DurationMS *int       `db:"duration_ms"`
	CreatedAt  time.Time  `db:"created_at"`
}

// RefreshCredential is an opaque, hashed-at-rest refresh token.
type RefreshCredential struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	HashedKey []byte     `db:"hashed_key"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// InviteToken is a reusable, constant-per-conversation invite value.
type InviteToken struct {
	Token          uuid.UUID `db:"token"`
	ConversationID uuid.UUID `db:"conversation_id"`
	CreatedAt      time.Time `db:"created_at"`
}
