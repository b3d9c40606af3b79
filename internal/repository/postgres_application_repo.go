package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/reapply/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用した応募記録リポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

const applicationColumns = `id, user_id, company, position, work_mode, location, status, applied_date,
	description, recruiter_email, email_thread_id, last_reply_at, follow_up_count, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(s rowScanner) (*model.JobApplication, error) {
	app := &model.JobApplication{}
	var (
		workMode    string
		status      string
		threadID    sql.NullString
		lastReplyAt sql.NullTime
	)
	err := s.Scan(
		&app.ID, &app.UserID, &app.Company, &app.Position, &workMode, &app.Location, &status,
		&app.AppliedDate, &app.Description, &app.RecruiterEmail, &threadID, &lastReplyAt,
		&app.FollowUpCount, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if app.WorkMode, err = model.ParseWorkMode(workMode); err != nil {
		return nil, fmt.Errorf("invalid work_mode in row %s: %w", app.ID, err)
	}
	if app.Status, err = model.ParseApplicationStatus(status); err != nil {
		return nil, fmt.Errorf("invalid status in row %s: %w", app.ID, err)
	}
	app.EmailThreadID = threadID.String
	if lastReplyAt.Valid {
		t := lastReplyAt.Time
		app.LastReplyAt = &t
	}
	return app, nil
}

// Create は応募記録を作成し、IDと作成日時を設定する。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.JobApplication) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO applications (user_id, company, position, work_mode, location, status,
		                           applied_date, description, recruiter_email, email_thread_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		app.UserID, app.Company, app.Position, string(app.WorkMode), app.Location, string(app.Status),
		app.AppliedDate, app.Description, app.RecruiterEmail, nullString(app.EmailThreadID),
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// FindByID は指定ユーザーの応募を取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, userID, id string) (*model.JobApplication, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return app, nil
}

// ListByUserID はユーザーの応募一覧を応募日の降順で返す。
// 同じ応募日の場合は作成日時の新しい順に並べる。
func (r *PostgresApplicationRepo) ListByUserID(ctx context.Context, userID string) ([]*model.JobApplication, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE user_id = $1
		 ORDER BY applied_date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.JobApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus は応募ステータスを更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresApplicationRepo) UpdateStatus(ctx context.Context, userID, id string, status model.ApplicationStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		id, userID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// CountByStatus はユーザーの応募数をステータス別に返す。
func (r *PostgresApplicationRepo) CountByStatus(ctx context.Context, userID string) (map[model.ApplicationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count(*) FROM applications WHERE user_id = $1 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ApplicationStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan application count: %w", err)
		}
		counts[model.ApplicationStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate application counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
