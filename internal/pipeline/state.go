// Package pipeline は応募メール送信の3段階パイプラインを提供する。
//
// 応募情報の入力、下書きの編集、プレビューを経て送信する。
// 状態はユーザーごとにRedisへ保存され、OAuth認可のリダイレクトをまたいで保持される。
package pipeline

import (
	"strings"
	"time"

	"github.com/hitoshi/reapply/internal/model"
)

// Stage はパイプラインの段階を表す。
type Stage string

const (
	StageCollectingDetails Stage = "collecting_details"
	StageEditingDraft      Stage = "editing_draft"
	StagePreviewing        Stage = "previewing"
)

// State はユーザーごとの送信途中の状態を表す。
type State struct {
	Stage                 Stage                    `json:"stage"`
	Details               model.ApplicationDetails `json:"details"`
	Draft                 model.EmailDraft         `json:"draft"`
	DraftEdited           bool                     `json:"draft_edited"`
	AwaitingAuthorization bool                     `json:"awaiting_authorization"`
	LastError             string                   `json:"last_error,omitempty"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

// newState は入力段階の空の状態を返す。
func newState() *State {
	return &State{Stage: StageCollectingDetails}
}

// defaultBodyTemplate は応募メール本文の既定テンプレート。
// [Position]と[Company]は応募情報で置換される。
const defaultBodyTemplate = `Dear Hiring Manager,

I am writing to express my interest in the [Position] position at [Company]. I believe my skills and experience make me a strong candidate for this role.

I have attached my resume for your review and would welcome the opportunity to discuss how I can contribute to your team.

Thank you for your time and consideration.

Best regards,`

// SynthesizeDraft は応募情報から下書きを生成する。
// 件名には職種と会社名をそのまま含める。
func SynthesizeDraft(details model.ApplicationDetails) model.EmailDraft {
	body := strings.NewReplacer(
		"[Position]", details.Position,
		"[Company]", details.Company,
	).Replace(defaultBodyTemplate)
	return model.EmailDraft{
		Subject: "Application for " + details.Position + " at " + details.Company,
		Body:    body,
	}
}
