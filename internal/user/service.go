// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/repository"
)

// PipelineStateDeleter は作成中の応募フロー状態の削除インターフェース。
type PipelineStateDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// ResumeDeleter は履歴書ファイルの一括削除インターフェース。
type ResumeDeleter interface {
	DeleteAll(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	stateDeleter  PipelineStateDeleter
	resumeDeleter ResumeDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	stateDeleter PipelineStateDeleter,
	resumeDeleter ResumeDeleter,
) *Service {
	return &Service{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		stateDeleter:  stateDeleter,
		resumeDeleter: resumeDeleter,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 応募フロー状態 → 履歴書ファイル → sessions → user
// （+ CASCADE: identities, profiles, applications, follow_ups）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 応募フロー状態を削除
	if s.stateDeleter != nil {
		if err := s.stateDeleter.Delete(ctx, userID); err != nil {
			return fmt.Errorf("応募フロー状態の削除に失敗しました: %w", err)
		}
	}

	// 2. 履歴書ファイルを削除
	if s.resumeDeleter != nil {
		if err := s.resumeDeleter.DeleteAll(ctx, userID); err != nil {
			return fmt.Errorf("履歴書の削除に失敗しました: %w", err)
		}
	}

	// 3. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 4. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		// 並行した退会で先に消えていた場合
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
