package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return g
}

func TestNewGateRejectsShortKey(t *testing.T) {
	_, err := NewGate([]byte("too-short"))
	assert.Error(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	g := testGate(t)
	uid := uuid.New()

	token := g.Issue(uid, time.Hour)
	got, err := g.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, uid, got)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	g := testGate(t)
	uid := uuid.New()

	token := g.Issue(uid, -time.Second)
	_, err := g.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	g := testGate(t)
	_, err := g.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	g := testGate(t)
	other, err := NewGate([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	token := other.Issue(uuid.New(), time.Hour)
	_, err = g.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformedBase64(t *testing.T) {
	g := testGate(t)
	_, err := g.Verify("not-valid-base64!!")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClassifyConnectError(t *testing.T) {
	assert.Equal(t, ReasonMissing, ClassifyConnectError(ErrMissingToken))
	assert.Equal(t, ReasonInvalid, ClassifyConnectError(ErrInvalidToken))
}
