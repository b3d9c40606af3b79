package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/reapply/internal/model"
)

// PostgresIdentityRepo はGoogleアカウントとユーザーの対応をPostgreSQLで引く。
type PostgresIdentityRepo struct {
	db *sql.DB
}

func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindUserByIdentity はプロバイダのアカウントに紐付くユーザーを1クエリで取得する。
// 紐付けがなければnilを返す。
func (r *PostgresIdentityRepo) FindUserByIdentity(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, u.created_at, u.updated_at
		 FROM identities i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.provider = $1 AND i.provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user for %s identity: %w", provider, err)
	}
	return u, nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
