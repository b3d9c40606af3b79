package resume

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/repository"
)

const (
	// MaxResumes はユーザーごとに保持できる履歴書の上限。
	MaxResumes = 2
	// DefaultURLExpiry はダウンロードURLの有効期限のデフォルト値。
	DefaultURLExpiry = time.Hour

	contentTypePDF = "application/pdf"
	namePrefix     = "resume_"
	nameSuffix     = ".pdf"
)

// Resume はユーザーに表示する履歴書ファイル。
type Resume struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Active     bool      `json:"active"`
}

// Service は履歴書ファイルのアップロードと管理を行う。
// storeがnilの場合、すべての操作はストレージ未設定エラーを返す。
type Service struct {
	store     ObjectStore
	settings  repository.ResumeSettingRepository
	urlExpiry time.Duration
	now       func() time.Time
}

// NewService はServiceを生成する。urlExpiryが0以下の場合はデフォルト値を使う。
func NewService(store ObjectStore, settings repository.ResumeSettingRepository, urlExpiry time.Duration) *Service {
	if urlExpiry <= 0 {
		urlExpiry = DefaultURLExpiry
	}
	return &Service{
		store:     store,
		settings:  settings,
		urlExpiry: urlExpiry,
		now:       time.Now,
	}
}

// Enabled はオブジェクトストレージが設定されているかを返す。
func (s *Service) Enabled() bool {
	return s.store != nil
}

// List はユーザーの履歴書をアップロード日時の新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*Resume, error) {
	if !s.Enabled() {
		return nil, model.NewStorageDisabledError()
	}

	objects, err := s.listObjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.settings.GetActiveResume(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active resume: %w", err)
	}

	resumes := make([]*Resume, 0, len(objects))
	for _, obj := range objects {
		name := path.Base(obj.Key)
		url, err := s.store.PresignGet(ctx, obj.Key, s.urlExpiry)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, &Resume{
			Name:       name,
			URL:        url,
			Size:       obj.Size,
			UploadedAt: uploadedAt(name, obj.LastModified),
			Active:     name == active,
		})
	}
	sort.Slice(resumes, func(i, j int) bool {
		return resumes[i].UploadedAt.After(resumes[j].UploadedAt)
	})
	return resumes, nil
}

// Upload はPDFを検証して保存する。最初の1件は自動的にアクティブになる。
func (s *Service) Upload(ctx context.Context, userID string, data []byte) (*Resume, error) {
	if !s.Enabled() {
		return nil, model.NewStorageDisabledError()
	}
	if _, err := ValidatePDF(data); err != nil {
		return nil, model.NewInvalidResumeError(err.Error())
	}

	objects, err := s.listObjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(objects) >= MaxResumes {
		return nil, model.NewResumeLimitError(MaxResumes)
	}

	now := s.now()
	name := namePrefix + strconv.FormatInt(now.UnixMilli(), 10) + nameSuffix
	key := objectKey(userID, name)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypePDF); err != nil {
		return nil, err
	}

	active, err := s.settings.GetActiveResume(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active resume: %w", err)
	}
	if active == "" {
		if err := s.settings.SetActiveResume(ctx, userID, name); err != nil {
			return nil, fmt.Errorf("failed to set active resume: %w", err)
		}
		active = name
	}

	url, err := s.store.PresignGet(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, err
	}

	slog.Info("resume uploaded",
		slog.String("user_id", userID),
		slog.String("name", name),
		slog.Int("size", len(data)),
	)
	return &Resume{
		Name:       name,
		URL:        url,
		Size:       int64(len(data)),
		UploadedAt: now,
		Active:     active == name,
	}, nil
}

// SetActive は指定した履歴書をアクティブにする。
func (s *Service) SetActive(ctx context.Context, userID, name string) error {
	if !s.Enabled() {
		return model.NewStorageDisabledError()
	}
	if err := s.requireExisting(ctx, userID, name); err != nil {
		return err
	}
	if err := s.settings.SetActiveResume(ctx, userID, name); err != nil {
		return fmt.Errorf("failed to set active resume: %w", err)
	}
	return nil
}

// Delete は履歴書を削除する。アクティブな履歴書だった場合は設定も解除する。
func (s *Service) Delete(ctx context.Context, userID, name string) error {
	if !s.Enabled() {
		return model.NewStorageDisabledError()
	}
	if err := s.requireExisting(ctx, userID, name); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, objectKey(userID, name)); err != nil {
		return err
	}

	active, err := s.settings.GetActiveResume(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get active resume: %w", err)
	}
	if active == name {
		if err := s.settings.SetActiveResume(ctx, userID, ""); err != nil {
			return fmt.Errorf("failed to clear active resume: %w", err)
		}
	}

	slog.Info("resume deleted",
		slog.String("user_id", userID),
		slog.String("name", name),
	)
	return nil
}

// DeleteAll はユーザーの全履歴書オブジェクトを削除する。退会処理で使う。
// ストレージ未設定の場合は何もしない。
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	if !s.Enabled() {
		return nil
	}
	objects, err := s.listObjects(ctx, userID)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) listObjects(ctx context.Context, userID string) ([]ObjectInfo, error) {
	objects, err := s.store.List(ctx, userID+"/")
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (s *Service) requireExisting(ctx context.Context, userID, name string) error {
	if !validName(name) {
		return model.NewResumeNotFoundError(name)
	}
	objects, err := s.listObjects(ctx, userID)
	if err != nil {
		return err
	}
	key := objectKey(userID, name)
	for _, obj := range objects {
		if obj.Key == key {
			return nil
		}
	}
	return model.NewResumeNotFoundError(name)
}

func objectKey(userID, name string) string {
	return userID + "/" + name
}

// validName はオブジェクト名が resume_<unixmillis>.pdf 形式かを判定する。
func validName(name string) bool {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix), 10, 64)
	return err == nil
}

// uploadedAt はオブジェクト名に埋め込まれたアップロード時刻を返す。
// 解析できない場合はストレージの更新日時を使う。
func uploadedAt(name string, fallback time.Time) time.Time {
	if !validName(name) {
		return fallback
	}
	ms, _ := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix), 10, 64)
	return time.UnixMilli(ms).UTC()
}
