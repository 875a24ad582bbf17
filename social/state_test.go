package social

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSignerRoundTrip(t *testing.T) {
	signer := NewStateSigner([]byte("state-key"), time.Minute)

	token, issued, err := signer.Issue("discord")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Nonce)

	state, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "discord", state.Provider)
	assert.Equal(t, issued.Nonce, state.Nonce)
}

func TestStateSignerRejectsTampering(t *testing.T) {
	signer := NewStateSigner([]byte("state-key"), time.Minute)

	token, _, err := signer.Issue("discord")
	require.NoError(t, err)

	body, sig, _ := strings.Cut(token, ".")

	_, err = signer.Verify(body + "x." + sig)
	assert.True(t, HasTextCode(err, TextCodeInvalidState))

	_, err = NewStateSigner([]byte("other-key"), time.Minute).Verify(token)
	assert.True(t, HasTextCode(err, TextCodeInvalidState))

	_, err = signer.Verify("no-separator")
	assert.True(t, HasTextCode(err, TextCodeInvalidState))
}

func TestStateSignerExpiry(t *testing.T) {
	signer := NewStateSigner([]byte("state-key"), time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, _, err := signer.Issue("discord")
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Verify(token)
	assert.True(t, HasTextCode(err, TextCodeStateExpired))
}

func TestExternalProfile(t *testing.T) {
	assert.Equal(t, "ada", ExternalProfile{Username: " ada ", Email: "x@example.com"}.DisplayName())
	assert.Equal(t, "grace", ExternalProfile{Email: "grace@example.com"}.DisplayName())
	assert.Equal(t, "discord-42", ExternalProfile{Provider: "discord", ExternalID: "42", Email: "@example.com"}.DisplayName())
	assert.Equal(t, "user", ExternalProfile{Email: "@example.com"}.DisplayName())

	assert.NoError(t, ExternalProfile{Email: "a@example.com"}.Validate())
	assert.Error(t, ExternalProfile{}.Validate())
	assert.Error(t, ExternalProfile{Email: "nope"}.Validate())
	assert.Error(t, ExternalProfile{Email: "@example.com"}.Validate())
}
