package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Adapter getters when a row does not exist
// or is not visible to the caller.
var ErrNotFound = errors.New("store: not found")

// ErrConflict signals a uniqueness or guard-condition violation, e.g. a
// Send upsert whose existing row has a different sender/conversation.
var ErrConflict = errors.New("store: conflict")

// Adapter is the interface a concrete database backend implements. It
// is the sole collaborator that knows how rows are stored; every
// lifecycle-advancing write is expressed as a guarded, idempotent
// update so correctness does not depend on external locking.
type Adapter interface {
	Open(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Users

	UserCreate(ctx context.Context, u *User) error
	UserGet(ctx context.Context, id uuid.UUID) (*User, error)
	UserTouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error

	// Conversations & membership

	ConversationCreate(ctx context.Context, c *Conversation) error
	ConversationGet(ctx context.Context, id uuid.UUID) (*Conversation, error)
	MembershipGet(ctx context.Context, conversationID, userID uuid.UUID) (*Membership, error)
	MembershipsForConversation(ctx context.Context, conversationID uuid.UUID) ([]Membership, error)
	// MembershipsForUser lists every conversation userID belongs to,
	// used to fan a presence transition out to all of a user's peers
	// (§4.6).
	MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	MembershipUpsert(ctx context.Context, m *Membership) error
	MembershipSetLastRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error

	// Messages — the state machine's persistence surface

	// MessageUpsert inserts a new message keyed on ID, or returns the
	// existing row unchanged if ID was already seen. inserted reports
	// which case occurred. Returns ErrConflict if the existing row's
	// sender or conversation differs from msg's.
	MessageUpsert(ctx context.Context, msg *Message) (stored *Message, inserted bool, err error)
	MessageGet(ctx context.Context, id uuid.UUID) (*Message, error)
	MessageEdit(ctx context.Context, id uuid.UUID, content string, at time.Time) (*Message, error)
	MessageSoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*Message, error)

	// MessageSetDelivered sets delivered_at under the guard
	// delivered_at IS NULL. ok reports whether this call performed the
	// write (false if it was already set).
	MessageSetDelivered(ctx context.Context, id uuid.UUID, at time.Time) (ok bool, err error)

	// MessageSetRead sets read_at (and delivered_at if still null)
	// under the guard read_at IS NULL. ok reports whether this call
	// performed the write.
	MessageSetRead(ctx context.Context, id uuid.UUID, at time.Time) (ok bool, err error)

	// MessagesForConversation returns messages in canonical
	// (created_at, id) ascending order, for pagination/reconciliation.
	MessagesForConversation(ctx context.Context, conversationID uuid.UUID, sinceID *uuid.UUID, limit int) ([]Message, error)

	// UndeliveredForRecipient returns messages in conversationID that
	// have no DeliveredAt yet and were not sent by recipient, used by
	// the reconnect reconciliation pass (§4.7).
	UndeliveredForRecipient(ctx context.Context, conversationID, recipient uuid.UUID) ([]Message, error)

	// Reactions

	ReactionUpsert(ctx context.Context, r *Reaction) error
	ReactionDelete(ctx context.Context, messageID, userID uuid.UUID) error
	ReactionsForMessage(ctx context.Context, messageID uuid.UUID) ([]Reaction, error)

	// Attachments

	AttachmentCreate(ctx context.Context, a *Attachment) error
	AttachmentsForMessage(ctx context.Context, messageID uuid.UUID) ([]Attachment, error)

	// Credentials & invites

	RefreshCredentialCreate(ctx context.Context, c *RefreshCredential) error
	RefreshCredentialGet(ctx context.Context, id uuid.UUID) (*RefreshCredential, error)
	RefreshCredentialRevoke(ctx context.Context, id uuid.UUID, at time.Time) error

	InviteTokenCreate(ctx context.Context, inv *InviteToken) error
	InviteTokenGet(ctx context.Context, token uuid.UUID) (*InviteToken, error)
}
