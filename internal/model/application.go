package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

// WorkMode は勤務形態を表す。
type WorkMode string

const (
	WorkModeRemote WorkMode = "Remote"
	WorkModeHybrid WorkMode = "Hybrid"
	WorkModeOnsite WorkMode = "Onsite"
)

// ParseWorkMode は文字列をWorkModeに変換する。未知の値はエラーとする。
func ParseWorkMode(s string) (WorkMode, error) {
	switch m := WorkMode(s); m {
	case WorkModeRemote, WorkModeHybrid, WorkModeOnsite:
		return m, nil
	default:
		return "", NewValidationError("work_mode", fmt.Sprintf("Remote、Hybrid、Onsite のいずれかを指定してください: %q", s))
	}
}

// ApplicationStatus は応募の進捗状態を表す。
// 状態遷移はユーザー操作によるもので、任意の値から任意の値へ変更できる。
type ApplicationStatus string

const (
	StatusApplied       ApplicationStatus = "Applied"
	StatusInterviewing  ApplicationStatus = "Interviewing"
	StatusOffered       ApplicationStatus = "Offered"
	StatusRejected      ApplicationStatus = "Rejected"
	StatusReplyReceived ApplicationStatus = "Reply Received"
)

// ParseApplicationStatus は文字列をApplicationStatusに変換する。
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	switch st := ApplicationStatus(s); st {
	case StatusApplied, StatusInterviewing, StatusOffered, StatusRejected, StatusReplyReceived:
		return st, nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("未知の応募ステータスです: %q", s))
	}
}

// 応募記録のカラム長に合わせた入力文字数の上限。
const (
	MaxCompanyLength        = 255
	MaxPositionLength       = 255
	MaxLocationLength       = 255
	MaxRecruiterEmailLength = 320
)

// DateLayout は応募日の日付フォーマット。
const DateLayout = "2006-01-02"

// JobApplication は送信済みの応募記録を表す。
// 応募メールの送信成功が確認された後にのみ作成される。
type JobApplication struct {
	ID             string
	UserID         string
	Company        string
	Position       string
	WorkMode       WorkMode
	Location       string
	Status         ApplicationStatus
	AppliedDate    time.Time
	Description    string
	RecruiterEmail string
	EmailThreadID  string
	LastReplyAt    *time.Time
	FollowUpCount  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplicationDetails はパイプライン第1段階で入力する応募情報を表す。
type ApplicationDetails struct {
	Company        string            `json:"company"`
	Position       string            `json:"position"`
	WorkMode       WorkMode          `json:"work_mode"`
	Location       string            `json:"location"`
	Status         ApplicationStatus `json:"status"`
	AppliedDate    string            `json:"applied_date"`
	Description    string            `json:"description"`
	RecruiterEmail string            `json:"recruiter_email"`
}

// Normalize は前後の空白を除去し、ステータスと応募日の既定値を補う。
func (d *ApplicationDetails) Normalize(now time.Time) {
	d.Company = strings.TrimSpace(d.Company)
	d.Position = strings.TrimSpace(d.Position)
	d.Location = strings.TrimSpace(d.Location)
	d.RecruiterEmail = strings.TrimSpace(d.RecruiterEmail)
	d.AppliedDate = strings.TrimSpace(d.AppliedDate)
	if d.Status == "" {
		d.Status = StatusApplied
	}
	if d.AppliedDate == "" {
		d.AppliedDate = now.UTC().Format(DateLayout)
	}
}

// Validate は応募情報を検証する。
// 下書き生成より前に呼ばれ、不正な場合は段階遷移をブロックする。
func (d *ApplicationDetails) Validate() error {
	if d.Company == "" {
		return NewValidationError("company", "会社名は必須です")
	}
	if err := checkLength("company", d.Company, MaxCompanyLength); err != nil {
		return err
	}
	if d.Position == "" {
		return NewValidationError("position", "職種は必須です")
	}
	if err := checkLength("position", d.Position, MaxPositionLength); err != nil {
		return err
	}
	if _, err := ParseWorkMode(string(d.WorkMode)); err != nil {
		return err
	}
	if d.Location == "" {
		return NewValidationError("location", "勤務地は必須です")
	}
	if err := checkLength("location", d.Location, MaxLocationLength); err != nil {
		return err
	}
	if _, err := ParseApplicationStatus(string(d.Status)); err != nil {
		return err
	}
	if _, err := time.Parse(DateLayout, d.AppliedDate); err != nil {
		return NewValidationError("applied_date", "YYYY-MM-DD形式で指定してください")
	}
	if err := checkLength("recruiter_email", d.RecruiterEmail, MaxRecruiterEmailLength); err != nil {
		return err
	}
	return ValidateRecruiterEmail(d.RecruiterEmail)
}

// checkLength は文字数（バイト数ではない）が上限以下であることを検証する。
func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return NewValidationError(field, fmt.Sprintf("%d文字以内で入力してください", limit))
	}
	return nil
}

// ValidateRecruiterEmail は採用担当者のメールアドレスが単一の有効なアドレスかを検証する。
func ValidateRecruiterEmail(addr string) error {
	if addr == "" {
		return NewValidationError("recruiter_email", "採用担当者のメールアドレスは必須です")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return NewValidationError("recruiter_email", fmt.Sprintf("メールアドレスの形式が不正です: %q", addr))
	}
	if parsed.Name != "" || parsed.Address != addr {
		return NewValidationError("recruiter_email", fmt.Sprintf("アドレスのみを指定してください: %q", addr))
	}
	return nil
}

// ToApplication は検証済みの応募情報から応募記録を組み立てる。
func (d *ApplicationDetails) ToApplication(userID, threadID string) *JobApplication {
	applied, _ := time.Parse(DateLayout, d.AppliedDate)
	return &JobApplication{
		UserID:         userID,
		Company:        d.Company,
		Position:       d.Position,
		WorkMode:       d.WorkMode,
		Location:       d.Location,
		Status:         d.Status,
		AppliedDate:    applied,
		Description:    d.Description,
		RecruiterEmail: d.RecruiterEmail,
		EmailThreadID:  threadID,
	}
}

// EmailDraft は応募メールの下書きを表す。パイプライン状態の中にのみ存在する。
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate は件名と本文が空でないことを検証する。
func (d *EmailDraft) Validate() error {
	if strings.TrimSpace(d.Subject) == "" {
		return NewValidationError("subject", "件名は必須です")
	}
	if strings.TrimSpace(d.Body) == "" {
		return NewValidationError("body", "本文は必須です")
	}
	return nil
}

// ApplicationStats はダッシュボードに表示する集計値を表す。
type ApplicationStats struct {
	TotalApplied int `json:"total_applied"`
	Interviewing int `json:"interviewing"`
	Rejected     int `json:"rejected"`
	Pending      int `json:"pending"`
}
