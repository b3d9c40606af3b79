package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/reapply/internal/gmail"
	"github.com/hitoshi/reapply/internal/metrics"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/security"
)

// CredentialSource は送信に使用する認証情報を提供する。
type CredentialSource interface {
	// GetValidCredential は利用可能な認証情報、または認可フロー開始URLを返す。
	GetValidCredential(ctx context.Context, session *model.Session, purpose model.FlowPurpose) (*model.OAuthCredential, string)
}

// Mailer はエンコード済みメッセージを送信する。
type Mailer interface {
	Send(ctx context.Context, accessToken, raw string) (*gmail.SendResult, error)
}

// ApplicationCreator は送信済みの応募記録を保存する。
type ApplicationCreator interface {
	Create(ctx context.Context, app *model.JobApplication) error
}

// SenderFinder は送信元となるユーザーを取得する。
type SenderFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SendStatus は送信操作の結果種別。
type SendStatus string

const (
	SendStatusSent                  SendStatus = "sent"
	SendStatusAwaitingAuthorization SendStatus = "awaiting_authorization"
)

// SendResult は送信操作の結果。
// 認証情報が利用できない場合はエラーではなくAuthURLを返し、呼び出し元が遷移させる。
type SendResult struct {
	Status      SendStatus
	Application *model.JobApplication
	AuthURL     string
}

// Service は応募メール送信パイプラインを提供する。
type Service struct {
	store       StateStore
	credentials CredentialSource
	mailer      Mailer
	apps        ApplicationCreator
	senders     SenderFinder
	sanitizer   security.Sanitizer
	metrics     metrics.MetricsCollector
	now         func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	store StateStore,
	credentials CredentialSource,
	mailer Mailer,
	apps ApplicationCreator,
	senders SenderFinder,
	sanitizer security.Sanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		store:       store,
		credentials: credentials,
		mailer:      mailer,
		apps:        apps,
		senders:     senders,
		sanitizer:   sanitizer,
		metrics:     collector,
		now:         time.Now,
	}
}

// Current は現在の状態を返す。進行中のパイプラインがない場合は入力段階の状態を返す。
func (s *Service) Current(ctx context.Context, session *model.Session) (*State, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.load(ctx, session.UserID)
}

// SubmitDetails は応募情報を検証し、下書き編集段階へ進める。
// ユーザーが下書きを編集済みの場合は下書きを再生成しない。
func (s *Service) SubmitDetails(ctx context.Context, session *model.Session, details model.ApplicationDetails) (*State, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	state, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if state.Stage != StageCollectingDetails {
		return nil, model.NewInvalidTransitionError(string(state.Stage), "応募情報の送信")
	}

	details.Normalize(s.now())
	if err := details.Validate(); err != nil {
		return nil, err
	}

	state.Details = details
	if !state.DraftEdited {
		state.Draft = SynthesizeDraft(details)
	}
	state.Stage = StageEditingDraft
	state.LastError = ""
	state.AwaitingAuthorization = false

	if err := s.save(ctx, session.UserID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveDraft は編集した下書きを保存し、プレビュー段階へ進める。
func (s *Service) SaveDraft(ctx context.Context, session *model.Session, draft model.EmailDraft) (*State, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	state, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if state.Stage != StageEditingDraft {
		return nil, model.NewInvalidTransitionError(string(state.Stage), "下書きの保存")
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	state.Draft = draft
	state.DraftEdited = true
	state.Stage = StagePreviewing
	state.LastError = ""

	if err := s.save(ctx, session.UserID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Back は1つ前の段階へ戻る。入力済みの応募情報と下書きは保持する。
func (s *Service) Back(ctx context.Context, session *model.Session) (*State, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	state, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	switch state.Stage {
	case StageEditingDraft:
		state.Stage = StageCollectingDetails
	case StagePreviewing:
		state.Stage = StageEditingDraft
	default:
		return nil, model.NewInvalidTransitionError(string(state.Stage), "前の段階へ戻る")
	}
	state.AwaitingAuthorization = false
	state.LastError = ""

	if err := s.save(ctx, session.UserID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Send はプレビュー中の下書きを採用担当者へ送信し、応募記録を保存する。
// 送信に失敗した場合は状態をプレビュー段階に保ち、同じ内容で再送できる。
func (s *Service) Send(ctx context.Context, session *model.Session) (*SendResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	userID := session.UserID

	acquired, err := s.store.AcquireSendLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, model.NewSendInProgressError()
	}
	defer func() {
		// 呼び出し元のキャンセルに関係なくロックを解放する
		if err := s.store.ReleaseSendLock(context.WithoutCancel(ctx), userID); err != nil {
			slog.Error("failed to release send lock",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()

	// 先行する送信が状態を破棄している場合があるため、ロック取得後に読み込む
	state, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.Stage != StagePreviewing {
		return nil, model.NewInvalidTransitionError(string(state.Stage), "送信")
	}

	cred, authURL := s.credentials.GetValidCredential(ctx, session, model.PurposeSendApplication)
	if cred == nil {
		state.AwaitingAuthorization = true
		state.LastError = ""
		if err := s.save(ctx, userID, state); err != nil {
			return nil, err
		}
		s.metrics.RecordAuthorizationRequired(string(model.PurposeSendApplication))
		slog.Info("send suspended for authorization", slog.String("user_id", userID))
		return &SendResult{Status: SendStatusAwaitingAuthorization, AuthURL: authURL}, nil
	}

	if err := model.ValidateRecruiterEmail(state.Details.RecruiterEmail); err != nil {
		return nil, err
	}

	from, err := s.senderAddress(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	raw, err := gmail.BuildRaw(gmail.Message{
		From:    from,
		To:      state.Details.RecruiterEmail,
		Subject: state.Draft.Subject,
		Body:    state.Draft.Body,
	}, now)
	if err != nil {
		return nil, s.failDelivery(ctx, userID, state, err.Error())
	}

	result, err := s.mailer.Send(ctx, cred.AccessToken, gmail.EncodeRaw(raw))
	s.metrics.RecordSendLatency(s.now().Sub(now))
	if err != nil {
		reason := "メール送信サービスに接続できませんでした"
		var sendErr *gmail.SendError
		if errors.As(err, &sendErr) {
			s.metrics.RecordGatewayStatus(sendErr.StatusCode)
			reason = sendErr.Message
		}
		slog.Warn("application email delivery failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, s.failDelivery(ctx, userID, state, reason)
	}

	app := state.Details.ToApplication(userID, result.ThreadID)
	if s.sanitizer != nil {
		app.Description = s.sanitizer.Sanitize(app.Description)
	}

	if err := s.apps.Create(ctx, app); err != nil {
		// メールは送信済みのため状態を破棄し、再送させない
		slog.Error("application record not saved after send",
			slog.String("user_id", userID),
			slog.String("message_id", result.ID),
			slog.String("thread_id", result.ThreadID),
			slog.String("error", err.Error()),
		)
		s.discard(ctx, userID)
		s.metrics.RecordSendFailure("persistence")
		return nil, model.NewPersistenceError("応募記録を保存できませんでした")
	}

	s.discard(ctx, userID)
	s.metrics.RecordSendSuccess()
	slog.Info("application email sent",
		slog.String("user_id", userID),
		slog.String("application_id", app.ID),
		slog.String("message_id", result.ID),
	)
	return &SendResult{Status: SendStatusSent, Application: app}, nil
}

// Resume は認可フロー完了後に中断していた送信を再開する。
// 認可待ちの状態がない場合は何もせずnilを返す。
func (s *Service) Resume(ctx context.Context, session *model.Session) (*SendResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	state, err := s.store.Load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.Stage != StagePreviewing || !state.AwaitingAuthorization {
		return nil, nil
	}
	return s.Send(ctx, session)
}

// Abandon は進行中のパイプラインを破棄する。
func (s *Service) Abandon(ctx context.Context, session *model.Session) error {
	if err := requireSession(session); err != nil {
		return err
	}
	return s.store.Delete(ctx, session.UserID)
}

// senderAddress はサインイン中のユーザーのメールアドレスを返す。
func (s *Service) senderAddress(ctx context.Context, userID string) (string, error) {
	u, err := s.senders.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find sender: %w", err)
	}
	if u == nil || u.Email == "" {
		return "", model.NewAuthorizationError("送信元のメールアドレスを取得できませんでした。再度サインインしてください")
	}
	return u.Email, nil
}

// failDelivery は送信失敗を状態に記録し、DeliveryErrorを返す。
func (s *Service) failDelivery(ctx context.Context, userID string, state *State, reason string) error {
	state.AwaitingAuthorization = false
	state.LastError = reason
	if err := s.save(ctx, userID, state); err != nil {
		slog.Error("failed to record delivery error",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.RecordSendFailure("delivery")
	return model.NewDeliveryError(reason)
}

// discard は送信後の状態を削除する。失敗してもログのみ出力する。
func (s *Service) discard(ctx context.Context, userID string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), userID); err != nil {
		slog.Error("failed to clear pipeline state",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) load(ctx context.Context, userID string) (*State, error) {
	state, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return newState(), nil
	}
	return state, nil
}

func (s *Service) save(ctx context.Context, userID string, state *State) error {
	state.UpdatedAt = s.now()
	if err := s.store.Save(ctx, userID, state); err != nil {
		return fmt.Errorf("failed to persist pipeline stage: %w", err)
	}
	return nil
}

func requireSession(session *model.Session) error {
	if session == nil || session.UserID == "" {
		return model.NewAuthorizationError("サインインが必要です")
	}
	return nil
}
