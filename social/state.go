package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuthState is carried in the state parameter of an authorization request.
type OAuthState struct {
	Nonce     string `json:"n"`
	Provider  string `json:"p"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// StateSigner issues and verifies HMAC signed OAuth states.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner creates a signer. A zero ttl defaults to ten minutes.
func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{key: key, ttl: ttl, now: time.Now}
}

// Issue creates a fresh state for provider and returns its encoded form.
func (s *StateSigner) Issue(provider string) (string, *OAuthState, error) {
	now := s.now()
	state := &OAuthState{
		Nonce:     uuid.NewString(),
		Provider:  provider,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", nil, err
	}

	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + s.sign(body), state, nil
}

// Verify checks the signature and expiry of token
func (s *StateSigner) Verify(token string) (*OAuthState, error) {
	body, signature, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal([]byte(signature), []byte(s.sign(body))) {
		return nil, ErrInvalidState
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state OAuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, ErrInvalidState
	}

	if s.now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return &state, nil
}

func (s *StateSigner) sign(body string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
