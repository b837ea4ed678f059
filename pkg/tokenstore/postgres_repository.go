package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resumeworks/resume-verify/pkg/tokencodec"
)

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new Postgres-backed token repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, token *Token) (uuid.UUID, error) {
	query := `
		INSERT INTO verification_tokens (
			subject_id, token_hash, email, purpose, issued_at, expires_at,
			attempts, max_attempts, created_by_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		token.SubjectID,
		token.TokenHash,
		token.Email,
		token.Purpose,
		token.IssuedAt,
		token.ExpiresAt,
		token.Attempts,
		token.MaxAttempts,
		token.CreatedByIP,
		token.UserAgent,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*Token, error) {
	query := `
		SELECT id, subject_id, token_hash, email, purpose, issued_at, expires_at,
		       used_at, used_reason, attempts, max_attempts, created_by_ip, user_agent
		FROM verification_tokens
		WHERE token_hash = $1
	`

	var t Token
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.SubjectID,
		&t.TokenHash,
		&t.Email,
		&t.Purpose,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.UsedReason,
		&t.Attempts,
		&t.MaxAttempts,
		&t.CreatedByIP,
		&t.UserAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &t, nil
}

func (r *PostgresRepository) InvalidatePriorUnused(ctx context.Context, subjectID uuid.UUID, purpose tokencodec.Purpose, now time.Time) (int64, error) {
	query := `
		UPDATE verification_tokens
		SET used_at = $3, used_reason = $4
		WHERE subject_id = $1
		AND purpose = $2
		AND used_at IS NULL
		AND expires_at > $3
	`

	tag, err := r.db.Exec(ctx, query, subjectID, purpose, now, UsedReasonSuperseded)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// MarkUsedAtomically relies on the row-level conditional update: under
// concurrent redemption attempts at most one statement matches the
// used_at IS NULL predicate.
func (r *PostgresRepository) MarkUsedAtomically(ctx context.Context, tokenID uuid.UUID, usedAt time.Time, reason string) (bool, error) {
	query := `
		UPDATE verification_tokens
		SET used_at = $2, used_reason = $3
		WHERE id = $1
		AND used_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, tokenID, usedAt, reason)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) IncrementAttempts(ctx context.Context, tokenID uuid.UUID) (int32, error) {
	query := `
		UPDATE verification_tokens
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int32
	err := r.db.QueryRow(ctx, query, tokenID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	return attempts, nil
}

func (r *PostgresRepository) LatestPending(ctx context.Context, subjectID uuid.UUID, purpose tokencodec.Purpose, now time.Time) (*Token, error) {
	query := `
		SELECT id, subject_id, token_hash, email, purpose, issued_at, expires_at,
		       used_at, used_reason, attempts, max_attempts, created_by_ip, user_agent
		FROM verification_tokens
		WHERE subject_id = $1
		AND purpose = $2
		AND used_at IS NULL
		AND expires_at > $3
		ORDER BY issued_at DESC
		LIMIT 1
	`

	var t Token
	err := r.db.QueryRow(ctx, query, subjectID, purpose, now).Scan(
		&t.ID,
		&t.SubjectID,
		&t.TokenHash,
		&t.Email,
		&t.Purpose,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.UsedReason,
		&t.Attempts,
		&t.MaxAttempts,
		&t.CreatedByIP,
		&t.UserAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &t, nil
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE expires_at < $1
		AND used_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
