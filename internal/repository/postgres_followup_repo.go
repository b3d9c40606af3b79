package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/reapply/internal/model"
)

// PostgresFollowUpRepo はPostgreSQLを使用したフォローアップリポジトリ。
type PostgresFollowUpRepo struct {
	db *sql.DB
}

// NewPostgresFollowUpRepo はPostgresFollowUpRepoを生成する。
func NewPostgresFollowUpRepo(db *sql.DB) *PostgresFollowUpRepo {
	return &PostgresFollowUpRepo{db: db}
}

// CreateBatch はフォローアップを同一トランザクションで一括作成し、
// 応募のfollow_up_countを作成件数で上書きする。
// いずれかの挿入に失敗した場合は1件も作成されない。
func (r *PostgresFollowUpRepo) CreateBatch(ctx context.Context, applicationID string, followUps []*model.FollowUp) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO follow_ups (application_id, scheduled_at, subject, body, status, timing)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare follow-up insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range followUps {
		err := stmt.QueryRowContext(ctx,
			applicationID, f.ScheduledAt, f.Subject, f.Body, string(f.Status), string(f.Timing),
		).Scan(&f.ID, &f.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert follow-up: %w", err)
		}
		f.ApplicationID = applicationID
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE applications SET follow_up_count = $2, updated_at = now() WHERE id = $1`,
		applicationID, len(followUps),
	)
	if err != nil {
		return fmt.Errorf("failed to update follow-up count: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("application not found: %s", applicationID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByApplicationID は応募のフォローアップを予定日時の昇順で返す。
func (r *PostgresFollowUpRepo) ListByApplicationID(ctx context.Context, applicationID string) ([]*model.FollowUp, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, application_id, scheduled_at, subject, body, status, timing, created_at
		 FROM follow_ups
		 WHERE application_id = $1
		 ORDER BY scheduled_at ASC, created_at ASC`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	defer rows.Close()

	var result []*model.FollowUp
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follow-ups: %w", err)
	}
	return result, nil
}

// scanFollowUp は1行を読み取り、状態とタイミングを検証して変換する。
func scanFollowUp(s rowScanner) (*model.FollowUp, error) {
	f := &model.FollowUp{}
	var status, timing string
	if err := s.Scan(&f.ID, &f.ApplicationID, &f.ScheduledAt, &f.Subject, &f.Body, &status, &timing, &f.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan follow-up: %w", err)
	}

	var err error
	if f.Status, err = model.ParseFollowUpStatus(status); err != nil {
		return nil, fmt.Errorf("invalid status in follow-up %s: %w", f.ID, err)
	}
	if f.Timing, err = model.ParseFollowUpTiming(timing); err != nil {
		return nil, fmt.Errorf("invalid timing in follow-up %s: %w", f.ID, err)
	}
	return f, nil
}

// compile-time interface check
var _ FollowUpRepository = (*PostgresFollowUpRepo)(nil)
