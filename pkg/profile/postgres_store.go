package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres-backed profile store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetStatus(ctx context.Context, subjectID uuid.UUID) (*VerificationStatus, error) {
	query := `
		SELECT subject_id, verified, verified_at, verification_method, last_verification_token_id
		FROM profiles
		WHERE subject_id = $1
	`

	var status VerificationStatus
	err := s.db.QueryRow(ctx, query, subjectID).Scan(
		&status.SubjectID,
		&status.Verified,
		&status.VerifiedAt,
		&status.VerificationMethod,
		&status.LastTokenID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &status, nil
}

// MarkVerified upserts the profile row so subjects that verify before any
// other profile write still end up with a consistent record.
func (s *PostgresStore) MarkVerified(ctx context.Context, subjectID uuid.UUID, verifiedAt time.Time, method string, tokenID uuid.UUID) error {
	query := `
		INSERT INTO profiles (subject_id, verified, verified_at, verification_method, last_verification_token_id)
		VALUES ($1, TRUE, $2, $3, $4)
		ON CONFLICT (subject_id) DO UPDATE
		SET verified = TRUE,
		    verified_at = EXCLUDED.verified_at,
		    verification_method = EXCLUDED.verification_method,
		    last_verification_token_id = EXCLUDED.last_verification_token_id
	`

	_, err := s.db.Exec(ctx, query, subjectID, verifiedAt, method, tokenID)
	return err
}
