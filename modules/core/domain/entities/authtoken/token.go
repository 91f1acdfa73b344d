package authtoken

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Token is a control-plane access token. Only the sha256 digest is stored.
type Token struct {
	digest    string
	actorID   uuid.UUID
	expiresAt time.Time
}

func New(digest string, actorID uuid.UUID, expiresAt time.Time) *Token {
	return &Token{digest: digest, actorID: actorID, expiresAt: expiresAt}
}

func (t *Token) Digest() string       { return t.digest }
func (t *Token) ActorID() uuid.UUID   { return t.actorID }
func (t *Token) ExpiresAt() time.Time { return t.expiresAt }

func (t *Token) Expired(now time.Time) bool {
	return !t.expiresAt.IsZero() && now.After(t.expiresAt)
}

// Digest hashes a presented token the way the store keys it.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type Repository interface {
	GetByDigest(ctx context.Context, digest string) (*Token, error)
	Create(ctx context.Context, t *Token) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
