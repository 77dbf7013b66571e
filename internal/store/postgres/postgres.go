// Package postgres is the concrete Durable Store adapter: sqlx over a
// database/sql handle driven by the pgx stdlib driver. The split
// between store.Adapter (interface) and this package mirrors the
// teacher's store/adapter + a concrete per-backend package, generalized
// from MySQL to Postgres per SPEC_FULL.md §B.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/relaywire/chat/internal/store"
)

// Adapter implements store.Adapter against Postgres.
type Adapter struct {
	dsn string
	db  *sqlx.DB
}

// New returns an unopened adapter for dsn; call Open before use.
func New(dsn string) *Adapter {
	return &Adapter{dsn: dsn}
}

func (a *Adapter) Open(ctx context.Context) error {
	db, err := sqlx.Open("pgx", a.dsn)
	if err != nil {
		return fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("postgres: ping: %w", err)
	}
	a.db = db
	return Migrate(db.DB)
}

func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal MessageUpsert uses to detect a retried
// send racing its own first insert.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users -----------------------------------------------------------

func (a *Adapter) UserCreate(ctx context.Context, u *store.User) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, avatar_url, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.DisplayName, u.AvatarURL, u.LastSeenAt, u.CreatedAt)
	return err
}

func (a *Adapter) UserGet(ctx context.Context, id uuid.UUID) (*store.User, error) {
	var u store.User
	err := a.db.GetContext(ctx, &u, `
		SELECT id, display_name, avatar_url, last_seen_at, created_at
		FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return &u, err
}

func (a *Adapter) UserTouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := a.db.ExecContext(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// --- Conversations & membership ---------------------------------------

func (a *Adapter) ConversationCreate(ctx context.Context, c *store.Conversation) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO conversations (id, variant, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Variant, c.Name, c.CreatedAt, c.UpdatedAt)
	return err
}

func (a *Adapter) ConversationGet(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	var c store.Conversation
	err := a.db.GetContext(ctx, &c, `
		SELECT id, variant, name, created_at, updated_at
		FROM conversations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return &c, err
}

func (a *Adapter) MembershipGet(ctx context.Context, conversationID, userID uuid.UUID) (*store.Membership, error) {
	var m store.Membership
	err := a.db.GetContext(ctx, &m, `
		SELECT conversation_id, user_id, role, last_read_message_id, joined_at
		FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return &m, err
}

func (a *Adapter) MembershipsForConversation(ctx context.Context, conversationID uuid.UUID) ([]store.Membership, error) {
	var ms []store.Membership
	err := a.db.SelectContext(ctx, &ms, `
		SELECT conversation_id, user_id, role, last_read_message_id, joined_at
		FROM conversation_members WHERE conversation_id = $1`, conversationID)
	return ms, err
}

func (a *Adapter) MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]store.Membership, error) {
	var ms []store.Membership
	err := a.db.SelectContext(ctx, &ms, `
		SELECT conversation_id, user_id, role, last_read_message_id, joined_at
		FROM conversation_members WHERE user_id = $1`, userID)
	return ms, err
}

func (a *Adapter) MembershipUpsert(ctx context.Context, m *store.Membership) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO conversation_members (conversation_id, user_id, role, last_read_message_id, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		m.ConversationID, m.UserID, m.Role, m.LastReadMessageID, m.JoinedAt)
	return err
}

func (a *Adapter) MembershipSetLastRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE conversation_members SET last_read_message_id = $3
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID, messageID)
	return err
}

// --- Messages ----------------------------------------------------------

const messageColumns = `id, conversation_id, sender_id, content, variant, reply_to_id,
	created_at, edited_at, deleted_at, delivered_at, read_at`

func (a *Adapter) MessageUpsert(ctx context.Context, msg *store.Message) (*store.Message, bool, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var existing store.Message
	err = tx.GetContext(ctx, &existing, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1 FOR UPDATE`, msg.ID)
	if err == nil {
		if existing.SenderID != msg.SenderID || existing.ConversationID != msg.ConversationID {
			return nil, false, store.ErrConflict
		}
		return &existing, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, variant, reply_to_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Variant, msg.ReplyToID, msg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race with a concurrent identical retry; the failed
			// insert aborted this transaction, so read back the winner's
			// row outside it, as a second attempt would see it.
			tx.Rollback()
			winner, getErr := a.MessageGet(ctx, msg.ID)
			if getErr != nil {
				return nil, false, getErr
			}
			if winner.SenderID != msg.SenderID || winner.ConversationID != msg.ConversationID {
				return nil, false, store.ErrConflict
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	var inserted store.Message
	if err := tx.GetContext(ctx, &inserted, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, msg.ID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &inserted, true, nil
}

func (a *Adapter) MessageGet(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	var m store.Message
	err := a.db.GetContext(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return &m, err
}

func (a *Adapter) MessageEdit(ctx context.Context, id uuid.UUID, content string, at time.Time) (*store.Message, error) {
	_, err := a.db.ExecContext(ctx, `
		UPDATE messages SET content = $2, edited_at = $3 WHERE id = $1`, id, content, at)
	if err != nil {
		return nil, err
	}
	return a.MessageGet(ctx, id)
}

func (a *Adapter) MessageSoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*store.Message, error) {
	_, err := a.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return nil, err
	}
	return a.MessageGet(ctx, id)
}

func (a *Adapter) MessageSetDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := a.db.ExecContext(ctx, `
		UPDATE messages SET delivered_at = $2 WHERE id = $1 AND delivered_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *Adapter) MessageSetRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := a.db.ExecContext(ctx, `
		UPDATE messages
		SET read_at = $2,
		    delivered_at = COALESCE(delivered_at, $2)
		WHERE id = $1 AND read_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *Adapter) MessagesForConversation(ctx context.Context, conversationID uuid.UUID, sinceID *uuid.UUID, limit int) ([]store.Message, error) {
	var msgs []store.Message
	if sinceID == nil {
		err := a.db.SelectContext(ctx, &msgs, `
			SELECT `+messageColumns+` FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $2`, conversationID, limit)
		return msgs, err
	}

	var cursor store.Message
	if err := a.db.GetContext(ctx, &cursor, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, *sinceID); err != nil {
		return nil, err
	}
	err := a.db.SelectContext(ctx, &msgs, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at ASC, id ASC
		LIMIT $4`, conversationID, cursor.CreatedAt, *sinceID, limit)
	return msgs, err
}

func (a *Adapter) UndeliveredForRecipient(ctx context.Context, conversationID, recipient uuid.UUID) ([]store.Message, error) {
	var msgs []store.Message
	err := a.db.SelectContext(ctx, &msgs, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1 AND delivered_at IS NULL AND sender_id <> $2
		ORDER BY created_at ASC, id ASC`, conversationID, recipient)
	return msgs, err
}

// --- Reactions -----------------------------------------------------------

func (a *Adapter) ReactionUpsert(ctx context.Context, r *store.Reaction) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji, created_at = EXCLUDED.created_at`,
		r.MessageID, r.UserID, r.Emoji, r.CreatedAt)
	return err
}

func (a *Adapter) ReactionDelete(ctx context.Context, messageID, userID uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM reactions WHERE message_id = $1 AND user_id = $2`, messageID, userID)
	return err
}

func (a *Adapter) ReactionsForMessage(ctx context.Context, messageID uuid.UUID) ([]store.Reaction, error) {
	var rs []store.Reaction
	err := a.db.SelectContext(ctx, &rs, `
		SELECT message_id, user_id, emoji, created_at FROM reactions WHERE message_id = $1`, messageID)
	return rs, err
}

// --- Attachments -----------------------------------------------------------

func (a *Adapter) AttachmentCreate(ctx context.Context, at *store.Attachment) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO attachments (id, message_id, url, mime_type, size_bytes, thumb_url, width, height, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		at.ID, at.MessageID, at.URL, at.MimeType, at.SizeBytes, at.ThumbURL, at.Width, at.Height, at.DurationMS, at.CreatedAt)
	return err
}

func (a *Adapter) AttachmentsForMessage(ctx context.Context, messageID uuid.UUID) ([]store.Attachment, error) {
	var as []store.Attachment
	err := a.db.SelectContext(ctx, &as, `
		SELECT id, message_id, url, mime_type, size_bytes, thumb_url, width, height, duration_ms, created_at
		FROM attachments WHERE message_id = $1`, messageID)
	return as, err
}

// --- Credentials & invites ---------------------------------------------

func (a *Adapter) RefreshCredentialCreate(ctx context.Context, c *store.RefreshCredential) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO refresh_credentials (id, user_id, hashed_key, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.HashedKey, c.ExpiresAt, c.RevokedAt, c.CreatedAt)
	return err
}

func (a *Adapter) RefreshCredentialGet(ctx context.Context, id uuid.UUID) (*store.RefreshCredential, error) {
	var c store.RefreshCredential
	err := a.db.GetContext(ctx, &c, `
		SELECT id, user_id, hashed_key, expires_at, revoked_at, created_at
		FROM refresh_credentials WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return &c, err
}

func (a *Adapter) RefreshCredentialRevoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := a.db.ExecContext(ctx, `UPDATE refresh_credentials SET revoked_at = $2 WHERE id = $1`, id, at)
	return err
}

func (a *Adapter) InviteTokenCreate(ctx context.Context, inv *store.InviteToken) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO invite_tokens (token, conversation_id, created_at)
		VALUES ($1, $2, $3)`, inv.Token, inv.ConversationID, inv.CreatedAt)
	return err
}

func (a *Adapter) InviteTokenGet(ctx context.Context, token uuid.UUID) (*store.InviteToken, error) {
	var inv store.InviteToken
	err := a.db.GetContext(ctx, &inv, `
		SELECT token, conversation_id, created_at FROM invite_tokens WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return &inv, err
}

var _ store.Adapter = (*Adapter)(nil)
