package repository

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/logger"
)

// AuditRepo appends rows to the audit_log table. Failures are logged and
// swallowed: an audit hiccup must never fail the business operation.
type AuditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo returns an AuditRepo bound to the provided database.
func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record writes one audit entry.
func (r *AuditRepo) Record(ctx context.Context, who int64, action, meta string) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (who, action, meta) VALUES ($1, $2, $3)`,
		who, action, meta)
	if err != nil {
		logger.DB.Warn("audit write failed",
			slog.String("event", "db.audit"),
			slog.Int64("user_id", who),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
	}
}
