package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAppender appends audit entries to the audit_entries table.
type PostgresAppender struct {
	db *pgxpool.Pool
}

// NewPostgresAppender creates a new Postgres-backed audit appender.
func NewPostgresAppender(db *pgxpool.Pool) *PostgresAppender {
	return &PostgresAppender{db: db}
}

func (a *PostgresAppender) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, subject_id, action, ts, ip, user_agent, success, error_message, related_token_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := a.db.Exec(ctx, query,
		entry.ID,
		entry.SubjectID,
		entry.Action,
		entry.Timestamp,
		entry.IP,
		entry.UserAgent,
		entry.Success,
		entry.ErrorMessage,
		entry.RelatedTokenID,
	)
	return err
}
