package iam

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/argon2"
)

// ErrMalformedDigest is returned when a stored argon2 digest cannot be parsed
var ErrMalformedDigest = goerrors.New("malformed password digest", goerrors.CategoryInternal).
	WithTextCode("MALFORMED_DIGEST").
	WithCode(goerrors.CodeInternal)

// Argon2Params are the argon2id cost parameters
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params are the node argon2 defaults, so digests written by
// the previous accounts service keep verifying.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2Hasher hashes passwords with argon2id and encodes them in PHC format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
type Argon2Hasher struct {
	Params Argon2Params
}

var _ Hasher = Argon2Hasher{}

// NewArgon2Hasher returns a hasher using DefaultArgon2Params
func NewArgon2Hasher() Argon2Hasher {
	return Argon2Hasher{Params: DefaultArgon2Params}
}

// Hash generates an argon2id digest with a random salt
func (h Argon2Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p := h.params()
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate salt")
	}

	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare recomputes the digest with the stored parameters and compares in
// constant time.
func (h Argon2Hasher) Compare(ctx context.Context, password, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, salt, key, err := decodeArgon2Digest(digest)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func (h Argon2Hasher) params() Argon2Params {
	if h.Params.Memory == 0 || h.Params.Iterations == 0 || h.Params.Parallelism == 0 {
		return DefaultArgon2Params
	}
	p := h.Params
	if p.SaltLength == 0 {
		p.SaltLength = DefaultArgon2Params.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = DefaultArgon2Params.KeyLength
	}
	return p
}

func decodeArgon2Digest(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrMalformedDigest
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, ErrMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrMalformedDigest
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedDigest
	}

	return p, salt, key, nil
}

// NewHasher returns the hasher named by cfg.Algorithm
func NewHasher(cfg HashingConfig) Hasher {
	if cfg.Algorithm == HashBcrypt {
		return NewBcryptHasher(cfg.BcryptCost)
	}
	return NewArgon2Hasher()
}
