// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, mail, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeAuthorization       = "AUTHORIZATION_FAILED"
	ErrCodeDelivery            = "DELIVERY_FAILED"
	ErrCodePersistence         = "PERSISTENCE_FAILED"
	ErrCodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	ErrCodeResumeNotFound      = "RESUME_NOT_FOUND"
	ErrCodeResumeLimit         = "RESUME_LIMIT"
	ErrCodeInvalidResume       = "INVALID_RESUME"
	ErrCodeSendInProgress      = "SEND_IN_PROGRESS"
	ErrCodeStorageDisabled     = "STORAGE_DISABLED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"

	// リクエスト処理層のエラーコード
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeCSRF           = "CSRF_FAILED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が不正です（%s）: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認して再度送信してください。",
	}
}

// NewInvalidTransitionError はパイプラインの段階遷移が許可されない場合のエラーを生成する。
func NewInvalidTransitionError(from, operation string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の段階（%s）では %s を実行できません。", from, operation),
		Category: "validation",
		Action:   "画面を再読み込みして現在の段階から操作をやり直してください。",
	}
}

// NewAuthorizationError はOAuth認可の失敗エラーを生成する。
func NewAuthorizationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthorization,
		Message:  fmt.Sprintf("認可に失敗しました: %s", reason),
		Category: "auth",
		Action:   "もう一度Googleアカウントとの連携をお試しください。",
	}
}

// NewDeliveryError はメール送信失敗エラーを生成する。
func NewDeliveryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDelivery,
		Message:  fmt.Sprintf("メールの送信に失敗しました: %s", reason),
		Category: "mail",
		Action:   "内容を確認し、しばらく待ってから再度送信してください。",
	}
}

// NewPersistenceError はメール送信後の記録失敗エラーを生成する。
// メール自体は送信済みのため、再送しないよう案内する。
func NewPersistenceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  fmt.Sprintf("メールは送信されましたが、応募記録の保存に失敗しました: %s", reason),
		Category: "system",
		Action:   "再送せずに、応募一覧を確認してください。",
	}
}

// NewApplicationNotFoundError は応募が見つからない場合のエラーを生成する。
func NewApplicationNotFoundError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("指定された応募が見つかりません: %s", applicationID),
		Category: "validation",
		Action:   "応募IDを確認してください。",
	}
}

// NewResumeNotFoundError は履歴書ファイルが見つからない場合のエラーを生成する。
func NewResumeNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeResumeNotFound,
		Message:  fmt.Sprintf("指定された履歴書が見つかりません: %s", name),
		Category: "validation",
		Action:   "履歴書一覧を再読み込みしてください。",
	}
}

// NewResumeLimitError は履歴書の登録上限エラーを生成する。
func NewResumeLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeResumeLimit,
		Message:  fmt.Sprintf("履歴書は最大%d件までしか登録できません。", limit),
		Category: "validation",
		Action:   "不要な履歴書を削除してからアップロードしてください。",
	}
}

// NewInvalidResumeError は履歴書ファイルが不正な場合のエラーを生成する。
func NewInvalidResumeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResume,
		Message:  fmt.Sprintf("履歴書ファイルが不正です: %s", reason),
		Category: "validation",
		Action:   "PDF形式のファイルをアップロードしてください。",
	}
}

// NewSendInProgressError は同一ユーザーの送信処理が実行中の場合のエラーを生成する。
func NewSendInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeSendInProgress,
		Message:  "メール送信処理が実行中です。",
		Category: "mail",
		Action:   "送信完了までお待ちください。",
	}
}

// NewStorageDisabledError はファイルストレージが未設定の場合のエラーを生成する。
func NewStorageDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageDisabled,
		Message:  "ファイルストレージが設定されていません。",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError はセッションが確認できない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "リクエストの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度操作してください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInternalError は詳細を伏せた内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// HasCode はエラーチェーンに指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
