package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewSessionVerifier("secret")

	token, err := v.Issue("user_2abc", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", claims.UserID())
	assert.Equal(t, "admin", claims.Role)
}

func TestVerifyRejects(t *testing.T) {
	v := NewSessionVerifier("secret")
	expired, err := v.Issue("user_2abc", "admin", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewSessionVerifier("other").Issue("user_2abc", "admin", time.Hour)
	require.NoError(t, err)
	noSubject, err := v.Issue("", "admin", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"foreign":    foreign,
		"no subject": noSubject,
		"garbage":    "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = NewSessionVerifier("").Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
