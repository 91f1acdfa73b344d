package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/complium/complium/modules/core/domain/entities/authtoken"
	"github.com/complium/complium/modules/core/infrastructure/persistence/models"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/serrors"
)

type TokenRepository struct{}

func NewTokenRepository() authtoken.Repository {
	return &TokenRepository{}
}

func (r *TokenRepository) GetByDigest(ctx context.Context, digest string) (*authtoken.Token, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	var t models.AccessToken
	err = tx.QueryRow(ctx, `
		SELECT token_hash, actor_id, expires_at
		FROM access_tokens
		WHERE token_hash = $1
	`, digest).Scan(&t.TokenHash, &t.ActorID, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, serrors.NewNotFound("access token", err)
		}
		return nil, errors.Wrap(err, "failed to query access token")
	}
	return toDomainToken(&t)
}

func (r *TokenRepository) Create(ctx context.Context, t *authtoken.Token) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO access_tokens (token_hash, actor_id, expires_at)
		VALUES ($1, $2, $3)
	`, t.Digest(), t.ActorID().String(), t.ExpiresAt())
	return err
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM access_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
