package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyTokenRoundTrip(t *testing.T) {
	verifier := NewJWTVerifier("test-secret")
	userID := uuid.New()

	token, err := verifier.IssueToken(userID, time.Hour)
	require.NoError(t, err)

	got, err := verifier.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	verifier := NewJWTVerifier("test-secret")

	_, err := verifier.VerifyToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	verifier := NewJWTVerifier("test-secret")
	token, err := verifier.IssueToken(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	minter := NewJWTVerifier("secret-a")
	verifier := NewJWTVerifier("secret-b")

	token, err := minter.IssueToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
