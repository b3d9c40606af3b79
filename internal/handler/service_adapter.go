package handler

import (
	"context"

	"github.com/hitoshi/reapply/internal/application"
	"github.com/hitoshi/reapply/internal/followup"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/user"
)

// ApplicationServiceAdapter は application.Service を ApplicationServiceInterface に適合させるアダプタ。
type ApplicationServiceAdapter struct {
	svc *application.Service
}

// NewApplicationServiceAdapter はApplicationServiceAdapterを生成する。
func NewApplicationServiceAdapter(svc *application.Service) *ApplicationServiceAdapter {
	return &ApplicationServiceAdapter{svc: svc}
}

// List はユーザーの応募一覧をhandlerレスポンス型で返す。
func (a *ApplicationServiceAdapter) List(ctx context.Context, userID string) ([]applicationResponse, error) {
	apps, err := a.svc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]applicationResponse, len(apps))
	for i, app := range apps {
		results[i] = toApplicationResponse(app)
	}
	return results, nil
}

// Get は応募詳細をhandlerレスポンス型で返す。
func (a *ApplicationServiceAdapter) Get(ctx context.Context, userID, id string) (*applicationResponse, error) {
	app, err := a.svc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	resp := toApplicationResponse(app)
	return &resp, nil
}

// UpdateStatus は応募ステータスを更新しhandlerレスポンス型で返す。
func (a *ApplicationServiceAdapter) UpdateStatus(ctx context.Context, userID, id, status string) (*applicationResponse, error) {
	app, err := a.svc.UpdateStatus(ctx, userID, id, status)
	if err != nil {
		return nil, err
	}
	resp := toApplicationResponse(app)
	return &resp, nil
}

// Stats はダッシュボード用の集計値を返す。
func (a *ApplicationServiceAdapter) Stats(ctx context.Context, userID string) (*model.ApplicationStats, error) {
	return a.svc.Stats(ctx, userID)
}

// FollowUpServiceAdapter は followup.Service を FollowUpServiceInterface に適合させるアダプタ。
type FollowUpServiceAdapter struct {
	svc *followup.Service
}

// NewFollowUpServiceAdapter はFollowUpServiceAdapterを生成する。
func NewFollowUpServiceAdapter(svc *followup.Service) *FollowUpServiceAdapter {
	return &FollowUpServiceAdapter{svc: svc}
}

// Configure はフォローアップ予定を登録しhandlerレスポンス型で返す。
func (a *FollowUpServiceAdapter) Configure(ctx context.Context, userID, applicationID string, req followup.Request) ([]followUpResponse, error) {
	followUps, err := a.svc.Configure(ctx, userID, applicationID, req)
	if err != nil {
		return nil, err
	}
	return toFollowUpResponses(followUps), nil
}

// List はフォローアップ予定をhandlerレスポンス型で返す。
func (a *FollowUpServiceAdapter) List(ctx context.Context, userID, applicationID string) ([]followUpResponse, error) {
	followUps, err := a.svc.List(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	return toFollowUpResponses(followUps), nil
}

func toFollowUpResponses(followUps []*model.FollowUp) []followUpResponse {
	results := make([]followUpResponse, len(followUps))
	for i, f := range followUps {
		results[i] = toFollowUpResponse(f)
	}
	return results
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ ApplicationServiceInterface = (*ApplicationServiceAdapter)(nil)
var _ FollowUpServiceInterface = (*FollowUpServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
