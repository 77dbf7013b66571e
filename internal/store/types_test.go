package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserIsOnline(t *testing.T) {
	now := time.Now()
	u := User{LastSeenAt: now.Add(-10 * time.Second)}

	assert.True(t, u.IsOnline(now, 30*time.Second))
	assert.False(t, u.IsOnline(now, 5*time.Second))
}

func TestMembershipCanSend(t *testing.T) {
	admin := Membership{Role: RoleAdmin}
	member := Membership{Role: RoleMember}

	assert.True(t, admin.CanSend(ConversationChannel))
	assert.False(t, member.CanSend(ConversationChannel))
	assert.True(t, member.CanSend(ConversationGroup))
	assert.True(t, member.CanSend(ConversationDirect))
}

func TestMessageVisibleContent(t *testing.T) {
	content := "hello"
	msg := Message{Content: &content}
	assert.Equal(t, &content, msg.VisibleContent())

	deletedAt := time.Now()
	msg.DeletedAt = &deletedAt
	assert.Nil(t, msg.VisibleContent())
}

func TestMessageEditable(t *testing.T) {
	sender := uuid.New()
	other := uuid.New()
	now := time.Now()

	msg := Message{
		SenderID:  sender,
		Variant:   MessageText,
		CreatedAt: now.Add(-time.Minute),
	}

	assert.True(t, msg.Editable(sender, now, 5*time.Minute))
	assert.False(t, msg.Editable(other, now, 5*time.Minute), "only the sender may edit")
	assert.False(t, msg.Editable(sender, now, 30*time.Second), "outside the edit window")

	imageMsg := msg
	imageMsg.Variant = MessageImage
	assert.False(t, imageMsg.Editable(sender, now, 5*time.Minute), "only text messages are editable")

	deletedAt := now
	deletedMsg := msg
	deletedMsg.DeletedAt = &deletedAt
	assert.False(t, deletedMsg.Editable(sender, now, 5*time.Minute), "a deleted message is not editable")
}
