// Package keys generates capability secrets and derives the keyed digests that
// are persisted in their place.
//
// Raw secrets only exist in memory and in the one-time links handed to the
// session creator. The store keeps Hash(secret), and every check goes through
// Verify, which compares digests in constant time.
package keys

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync/atomic"
)

const (
	// EditKeyBits is the entropy of an edit (read+write) key.
	EditKeyBits = 192
	// ViewKeyBits is the entropy of a view (read-only) key. The shorter length
	// only keeps view links compact.
	ViewKeyBits = 128

	// DevelopmentSecret keys the HMAC when no server secret is configured.
	DevelopmentSecret = "dev-feedback-sessions-secret"
)

// ErrInvalidBitLength is returned for non-positive or non-byte-aligned lengths.
var ErrInvalidBitLength = errors.New("invalid key bit length")

// GenerateKey returns bits of crypto/rand output encoded as unpadded base64url.
func GenerateKey(bits int) (string, error) {
	if bits <= 0 || bits%8 != 0 {
		return "", ErrInvalidBitLength
	}

	buf := make([]byte, bits/8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hasher computes HMAC-SHA256 digests of capability secrets under a
// server-held key.
type Hasher struct {
	key      []byte
	dummy    []byte
	computed atomic.Uint64
}

// NewHasher returns a Hasher keyed by secret. An empty secret falls back to
// DevelopmentSecret; Default reports whether that happened.
func NewHasher(secret string) *Hasher {
	if secret == "" {
		secret = DevelopmentSecret
	}
	h := &Hasher{key: []byte(secret)}
	h.dummy = []byte(h.Hash("\x00unused"))
	return h
}

// Default reports whether the hasher runs on the built-in development key.
func (h *Hasher) Default() bool {
	return h != nil && string(h.key) == DevelopmentSecret
}

// Hash returns the hex-encoded HMAC-SHA256 of secret.
func (h *Hasher) Hash(secret string) string {
	h.computed.Add(1)
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Computed returns how many digests h has produced.
func (h *Hasher) Computed() uint64 {
	if h == nil {
		return 0
	}
	return h.computed.Load()
}

// Candidate is a presented secret hashed once, ready to be compared against
// any number of stored digests. The zero Candidate matches nothing.
type Candidate struct {
	digest []byte
}

// Prepare hashes secret. An empty secret costs no digest computation and
// yields the zero Candidate.
func (h *Hasher) Prepare(secret string) Candidate {
	if h == nil || secret == "" {
		return Candidate{}
	}
	return Candidate{digest: []byte(h.Hash(secret))}
}

// Matches compares the candidate with digest in constant time.
func (c Candidate) Matches(digest string) bool {
	if len(c.digest) == 0 || len(digest) != len(c.digest) {
		return false
	}
	return subtle.ConstantTimeCompare(c.digest, []byte(digest)) == 1
}

// Verify recomputes Hash(candidate) and compares it with digest in constant
// time. Empty inputs and length mismatches return false.
func (h *Hasher) Verify(candidate, digest string) bool {
	return h.Prepare(candidate).Matches(digest)
}

// VerifyBlind performs the same work as Verify against a digest nothing can
// match: one digest computation for a non-empty candidate, none for an empty
// one. Callers use it on paths that must not be faster than a real check,
// such as lookups of unknown ids.
func (h *Hasher) VerifyBlind(candidate string) bool {
	c := h.Prepare(candidate)
	if len(c.digest) == 0 {
		return false
	}
	_ = subtle.ConstantTimeCompare(c.digest, h.dummy)
	return false
}

// KeyPair holds a freshly generated edit/view pair and their digests. The raw
// keys must be handed out once and then dropped.
type KeyPair struct {
	Edit     string
	View     string
	EditHash string
	ViewHash string
}

// NewKeyPair generates an edit key and a view key and hashes both.
func NewKeyPair(h *Hasher) (KeyPair, error) {
	edit, err := GenerateKey(EditKeyBits)
	if err != nil {
		return KeyPair{}, err
	}
	view, err := GenerateKey(ViewKeyBits)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		Edit:     edit,
		View:     view,
		EditHash: h.Hash(edit),
		ViewHash: h.Hash(view),
	}, nil
}

// AdminKey holds the static administrator secret. The zero value is
// unconfigured and rejects every candidate.
type AdminKey struct {
	digest [sha256.Size]byte
	set    bool
}

// NewAdminKey returns an AdminKey for secret; an empty secret disables the
// admin override.
func NewAdminKey(secret string) AdminKey {
	if secret == "" {
		return AdminKey{}
	}
	return AdminKey{digest: sha256.Sum256([]byte(secret)), set: true}
}

// Configured reports whether an admin secret is set.
func (a AdminKey) Configured() bool {
	return a.set
}

// Verify reports whether candidate equals the admin secret. Both sides are
// reduced to SHA-256 first so the comparison is always equal-length.
func (a AdminKey) Verify(candidate string) bool {
	if !a.set || candidate == "" {
		return false
	}
	sum := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(sum[:], a.digest[:]) == 1
}
