// Package application は送信済み応募記録の参照とステータス管理を提供する。
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/repository"
)

// Service は応募記録の参照と更新を提供する。
type Service struct {
	repo repository.ApplicationRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.ApplicationRepository) *Service {
	return &Service{repo: repo}
}

// List はユーザーの応募一覧を応募日の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.JobApplication, error) {
	apps, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// Get はユーザーの応募を取得する。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.JobApplication, error) {
	app, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	if app == nil {
		return nil, model.NewApplicationNotFoundError(id)
	}
	return app, nil
}

// UpdateStatus は応募ステータスを更新する。遷移に制約はない。
func (s *Service) UpdateStatus(ctx context.Context, userID, id, status string) (*model.JobApplication, error) {
	parsed, err := model.ParseApplicationStatus(status)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, userID, id, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}
	if !updated {
		return nil, model.NewApplicationNotFoundError(id)
	}

	slog.Info("application status updated",
		slog.String("user_id", userID),
		slog.String("application_id", id),
		slog.String("status", string(parsed)),
	)
	return s.Get(ctx, userID, id)
}

// Stats はダッシュボード用の集計値を返す。
// 未回答はステータスがAppliedのままの応募数。
func (s *Service) Stats(ctx context.Context, userID string) (*model.ApplicationStats, error) {
	counts, err := s.repo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}

	stats := &model.ApplicationStats{
		Interviewing: counts[model.StatusInterviewing],
		Rejected:     counts[model.StatusRejected],
		Pending:      counts[model.StatusApplied],
	}
	for _, n := range counts {
		stats.TotalApplied += n
	}
	return stats, nil
}
