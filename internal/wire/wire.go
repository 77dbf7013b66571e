// Package wire defines the WebSocket frame structures exchanged between
// client and server. One JSON object per frame, matching the teacher's
// datamodel.go split into ClientCom/ServerCom message families.
package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClientEvent is the envelope for every inbound frame. At most one of
// the typed payload fields is non-nil, selected by Type; ping carries
// none.
type ClientEvent struct {
	Type string `json:"type"`

	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
	SendMessage *SendMessage `json:"sendMessage,omitempty"`
	EditMessage *EditMessage `json:"editMessage,omitempty"`
	DeleteMsg   *DeleteMsg   `json:"deleteMessage,omitempty"`
	Typing      *Typing      `json:"typing,omitempty"`
	Read        *Read        `json:"read,omitempty"`
	React       *React       `json:"react,omitempty"`
}

const (
	TypePing        = "ping"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSendMessage = "send_message"
	TypeEditMessage = "edit_message"
	TypeDeleteMsg   = "delete_message"
	TypeTyping      = "typing"
	TypeRead        = "read"
	TypeReact       = "react"
)

// Subscribe is the {subscribe} client event payload.
type Subscribe struct {
	ConversationIDs []uuid.UUID `json:"conversationIds"`
}

// Unsubscribe is the {unsubscribe} client event payload.
type Unsubscribe struct {
	ConversationIDs []uuid.UUID `json:"conversationIds"`
}

// SendMessage is the {send_message} client event payload. ID is
// client-chosen and is the idempotency key for the send.
type SendMessage struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversationId"`
	Content        *string     `json:"content,omitempty"`
	Type           string      `json:"type"`
	ReplyToID      *uuid.UUID  `json:"replyToId,omitempty"`
	AttachmentIDs  []uuid.UUID `json:"attachmentIds,omitempty"`
}

// EditMessage is the {edit_message} client event payload.
type EditMessage struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

// DeleteMsg is the {delete_message} client event payload.
type DeleteMsg struct {
	ID uuid.UUID `json:"id"`
}

// Typing is the {typing} client event payload.
type Typing struct {
	ConversationID uuid.UUID `json:"conversationId"`
	IsTyping       bool      `json:"isTyping"`
}

// Read is the {read} client event payload.
type Read struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
}

// React is the {react} client event payload. Emoji==nil removes the
// reacting user's reaction.
type React struct {
	MessageID uuid.UUID `json:"messageId"`
	Emoji     *string   `json:"emoji"`
}

// ServerEvent is the envelope for every outbound frame.
type ServerEvent struct {
	Type string `json:"type"`

	MessageAck      *MessageAck      `json:"messageAck,omitempty"`
	NewMessage      *NewMessage      `json:"newMessage,omitempty"`
	MessageUpdated  *MessageUpdated  `json:"messageUpdated,omitempty"`
	MessageDeleted  *MessageDeleted  `json:"messageDeleted,omitempty"`
	DeliveryReceipt *DeliveryReceipt `json:"deliveryReceipt,omitempty"`
	ReadReceipt     *ReadReceipt     `json:"readReceipt,omitempty"`
	Typing          *TypingEvent     `json:"typing,omitempty"`
	Presence        *Presence        `json:"presence,omitempty"`
	ReactionUpdated *ReactionUpdated `json:"reactionUpdated,omitempty"`
	Error           *ErrorEvent      `json:"error,omitempty"`
}

const (
	TypePong            = "pong"
	TypeMessageAck      = "message_ack"
	TypeNewMessage      = "new_message"
	TypeMessageUpdated  = "message_updated"
	TypeMessageDeleted  = "message_deleted"
	TypeDeliveryReceipt = "delivery_receipt"
	TypeReadReceipt     = "read_receipt"
	TypeTypingEvent     = "typing"
	TypePresence        = "presence"
	TypeReactionUpdated = "reaction_updated"
	TypeError           = "error"
)

// MessageAck is the {message_ack} server event.
type MessageAck struct {
	ID        uuid.UUID  `json:"id"`
	Status    string     `json:"status"` // "ok" | "error"
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// MessageView is the full wire representation of a persisted message,
// carried in {new_message}. This module serves no HTTP history
// endpoint.
type MessageView struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversationId"`
	SenderID       uuid.UUID   `json:"senderId"`
	Content        *string     `json:"content"`
	Type           string      `json:"type"`
	ReplyToID      *uuid.UUID  `json:"replyToId,omitempty"`
	AttachmentIDs  []uuid.UUID `json:"attachmentIds,omitempty"`
	Reactions      []Reaction  `json:"reactions,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	EditedAt       *time.Time  `json:"editedAt,omitempty"`
	DeletedAt      *time.Time  `json:"deletedAt,omitempty"`
	DeliveredAt    *time.Time  `json:"deliveredAt"`
	ReadAt         *time.Time  `json:"readAt"`
}

// Reaction is the wire shape of a single (message, user, emoji) row.
type Reaction struct {
	UserID uuid.UUID `json:"userId"`
	Emoji  string    `json:"emoji"`
}

// NewMessage is the {new_message} server event.
type NewMessage struct {
	Message MessageView `json:"message"`
}

// MessageUpdated is the {message_updated} server event.
type MessageUpdated struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"editedAt"`
}

// MessageDeleted is the {message_deleted} server event.
type MessageDeleted struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
}

// DeliveryReceipt is the {delivery_receipt} server event.
type DeliveryReceipt struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

// ReadReceipt is the {read_receipt} server event.
type ReadReceipt struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	MessageID      uuid.UUID `json:"messageId"`
	ReadAt         time.Time `json:"readAt"`
}

// TypingEvent is the {typing} server event, re-broadcast with the
// sender's userId attached.
type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	IsTyping       bool      `json:"isTyping"`
}

// Presence is the {presence} server event.
type Presence struct {
	UserID     uuid.UUID `json:"userId"`
	Status     string    `json:"status"` // "online" | "offline"
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// ReactionUpdated is the {reaction_updated} server event.
type ReactionUpdated struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	Emoji          *string   `json:"emoji"`
}

// ErrorEvent is the {error} server event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode marshals a ServerEvent to the length-delimited-free JSON form
// written to the socket (framing/length-prefixing is handled by the
// session's writer, see internal/session).
func Encode(ev *ServerEvent) ([]byte, error) {
	return json.Marshal(ev)
}
