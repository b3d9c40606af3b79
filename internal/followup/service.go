// Package followup は応募ごとのフォローアップメールの予定登録を提供する。
package followup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/reapply/internal/metrics"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/notify"
	"github.com/hitoshi/reapply/internal/repository"
)

const (
	// MinCount は1回の設定で登録するフォローアップの最小件数。
	MinCount = 1
	// MaxCount は1回の設定で登録するフォローアップの最大件数。
	MaxCount = 5

	// DefaultSubject はフォローアップメールの既定の件名。
	DefaultSubject = "Following up on my application"
	// DefaultBody はフォローアップメールの既定の本文。
	DefaultBody = `Dear Hiring Manager,

I hope this email finds you well. I am writing to follow up on my application for the [Position] role at [Company].

I remain very interested in the opportunity and would welcome the chance to discuss how my skills and experience align with your needs.

Thank you for your time and consideration.

Best regards,`
)

// customDateLayouts はカスタム日付として受け付ける形式。
var customDateLayouts = []string{
	model.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04",
}

// Entry は1件分のフォローアップ設定。
type Entry struct {
	Timing     string `json:"timing"`
	CustomDate string `json:"custom_date"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// Request はフォローアップ設定の入力。
type Request struct {
	Count   int     `json:"count"`
	Entries []Entry `json:"follow_ups"`
}

// ApplicationFinder はユーザーの応募を取得する。
type ApplicationFinder interface {
	FindByID(ctx context.Context, userID, id string) (*model.JobApplication, error)
}

// Service はフォローアップの予定登録を提供する。
type Service struct {
	apps      ApplicationFinder
	repo      repository.FollowUpRepository
	publisher notify.FollowUpPublisher
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。
// publisherがnilの場合は外部への引き渡しを行わない。
func NewService(
	apps ApplicationFinder,
	repo repository.FollowUpRepository,
	publisher notify.FollowUpPublisher,
	collector metrics.MetricsCollector,
) *Service {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		apps:      apps,
		repo:      repo,
		publisher: publisher,
		metrics:   collector,
		now:       time.Now,
	}
}

// Configure は応募のフォローアップを一括登録する。
// 既存の件数は上書きされ、登録後に外部の配信処理へ引き渡す。
func (s *Service) Configure(ctx context.Context, userID, applicationID string, req Request) ([]*model.FollowUp, error) {
	app, err := s.findApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}

	count := ClampCount(req.Count)
	now := s.now()

	followUps := make([]*model.FollowUp, 0, count)
	for i := 0; i < count; i++ {
		var entry Entry
		if i < len(req.Entries) {
			entry = req.Entries[i]
		}
		f, err := buildFollowUp(app, entry, now)
		if err != nil {
			return nil, err
		}
		followUps = append(followUps, f)
	}

	if err := s.repo.CreateBatch(ctx, app.ID, followUps); err != nil {
		return nil, fmt.Errorf("failed to create follow-ups: %w", err)
	}
	app.FollowUpCount = len(followUps)
	s.metrics.RecordFollowUpsScheduled(len(followUps))

	if err := s.publisher.PublishScheduled(ctx, app, followUps); err != nil {
		// 登録は完了しているため、引き渡しの失敗はログのみ
		slog.Error("failed to publish scheduled follow-ups",
			slog.String("application_id", app.ID),
			slog.Int("count", len(followUps)),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("follow-ups scheduled",
		slog.String("user_id", userID),
		slog.String("application_id", app.ID),
		slog.Int("count", len(followUps)),
	)
	return followUps, nil
}

// List は応募のフォローアップを予定日時順で返す。
func (s *Service) List(ctx context.Context, userID, applicationID string) ([]*model.FollowUp, error) {
	app, err := s.findApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	followUps, err := s.repo.ListByApplicationID(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	return followUps, nil
}

func (s *Service) findApplication(ctx context.Context, userID, applicationID string) (*model.JobApplication, error) {
	app, err := s.apps.FindByID(ctx, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	if app == nil {
		return nil, model.NewApplicationNotFoundError(applicationID)
	}
	return app, nil
}

func buildFollowUp(app *model.JobApplication, entry Entry, now time.Time) (*model.FollowUp, error) {
	timing := model.TimingTomorrow
	if t := strings.TrimSpace(entry.Timing); t != "" {
		parsed, err := model.ParseFollowUpTiming(t)
		if err != nil {
			return nil, err
		}
		timing = parsed
	}

	subject := entry.Subject
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	body := entry.Body
	if strings.TrimSpace(body) == "" {
		body = DefaultBody
	}

	return &model.FollowUp{
		ApplicationID: app.ID,
		ScheduledAt:   ScheduledDate(timing, entry.CustomDate, now),
		Subject:       Substitute(subject, app),
		Body:          Substitute(body, app),
		Status:        model.FollowUpPending,
		Timing:        timing,
	}, nil
}

// ClampCount は件数を登録可能な範囲に丸める。
func ClampCount(n int) int {
	if n < MinCount {
		return MinCount
	}
	if n > MaxCount {
		return MaxCount
	}
	return n
}

// ScheduledDate はタイミング指定から送信予定日時を算出する。
// customで日付が空または解釈できない場合は作成時刻を返す。
func ScheduledDate(timing model.FollowUpTiming, customDate string, now time.Time) time.Time {
	switch timing {
	case model.TimingTomorrow:
		return now.AddDate(0, 0, 1)
	case model.TimingCustom:
		if t, ok := parseCustomDate(customDate); ok {
			return t
		}
		return now
	default:
		return now
	}
}

func parseCustomDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range customDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Substitute は{Position}・{Company}と[Position]・[Company]のプレースホルダを応募の値で置換する。
func Substitute(text string, app *model.JobApplication) string {
	return strings.NewReplacer(
		"{Position}", app.Position,
		"{Company}", app.Company,
		"[Position]", app.Position,
		"[Company]", app.Company,
	).Replace(text)
}
