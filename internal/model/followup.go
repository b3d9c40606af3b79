package model

import (
	"fmt"
	"time"
)

// FollowUpStatus はフォローアップメールの状態を表す。
type FollowUpStatus string

const (
	FollowUpPending       FollowUpStatus = "pending"
	FollowUpSent          FollowUpStatus = "sent"
	FollowUpCancelled     FollowUpStatus = "cancelled"
	FollowUpReplyReceived FollowUpStatus = "reply_received"
)

// ParseFollowUpStatus は文字列をFollowUpStatusに変換する。未知の値はエラーとする。
func ParseFollowUpStatus(s string) (FollowUpStatus, error) {
	switch st := FollowUpStatus(s); st {
	case FollowUpPending, FollowUpSent, FollowUpCancelled, FollowUpReplyReceived:
		return st, nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("未知のフォローアップ状態です: %q", s))
	}
}

// FollowUpTiming は送信予定日時の指定方法を表す。
type FollowUpTiming string

const (
	TimingImmediate FollowUpTiming = "immediate"
	TimingTomorrow  FollowUpTiming = "tomorrow"
	TimingCustom    FollowUpTiming = "custom"
)

// ParseFollowUpTiming は文字列をFollowUpTimingに変換する。
func ParseFollowUpTiming(s string) (FollowUpTiming, error) {
	switch t := FollowUpTiming(s); t {
	case TimingImmediate, TimingTomorrow, TimingCustom:
		return t, nil
	default:
		return "", NewValidationError("timing", fmt.Sprintf("immediate、tomorrow、custom のいずれかを指定してください: %q", s))
	}
}

// FollowUp は応募に紐付くフォローアップメールの予定を表す。
type FollowUp struct {
	ID            string
	ApplicationID string
	ScheduledAt   time.Time
	Subject       string
	Body          string
	Status        FollowUpStatus
	Timing        FollowUpTiming
	CreatedAt     time.Time
}
