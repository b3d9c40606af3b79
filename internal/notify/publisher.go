// Package notify はフォローアップ予定を外部の配信処理へ引き渡す。
// 登録済みのフォローアップをRabbitMQのキューへ1件ずつ発行する。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hitoshi/reapply/internal/model"
)

// DefaultQueue はフォローアップ予定を発行するキュー名。
const DefaultQueue = "followups.scheduled"

// FollowUpPublisher はフォローアップ予定の発行インターフェース。
type FollowUpPublisher interface {
	PublishScheduled(ctx context.Context, app *model.JobApplication, followUps []*model.FollowUp) error
}

// ScheduledMessage はキューに発行するメッセージ本文。
type ScheduledMessage struct {
	FollowUpID     string    `json:"follow_up_id"`
	ApplicationID  string    `json:"application_id"`
	UserID         string    `json:"user_id"`
	RecruiterEmail string    `json:"recruiter_email"`
	ThreadID       string    `json:"thread_id,omitempty"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Timing         string    `json:"timing"`
}

// NewScheduledMessage は応募とフォローアップから発行メッセージを組み立てる。
func NewScheduledMessage(app *model.JobApplication, f *model.FollowUp) ScheduledMessage {
	return ScheduledMessage{
		FollowUpID:     f.ID,
		ApplicationID:  app.ID,
		UserID:         app.UserID,
		RecruiterEmail: app.RecruiterEmail,
		ThreadID:       app.EmailThreadID,
		ScheduledAt:    f.ScheduledAt.UTC(),
		Subject:        f.Subject,
		Body:           f.Body,
		Timing:         string(f.Timing),
	}
}

// channel はamqp.Channelのうち発行に必要な部分集合。
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher はRabbitMQへフォローアップ予定を発行する。
// amqp.Channelは並行利用できないため、発行をミューテックスで直列化する。
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
}

// DialAMQP はRabbitMQへ接続し、永続キューを宣言したAMQPPublisherを返す。
func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// PublishScheduled はフォローアップを1件ずつ永続メッセージとして発行する。
func (p *AMQPPublisher) PublishScheduled(ctx context.Context, app *model.JobApplication, followUps []*model.FollowUp) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range followUps {
		body, err := json.Marshal(NewScheduledMessage(app, f))
		if err != nil {
			return fmt.Errorf("failed to encode follow-up message: %w", err)
		}
		err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    f.ID,
			Timestamp:    f.CreatedAt,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("failed to publish follow-up %s: %w", f.ID, err)
		}
	}
	return nil
}

// Close はチャネルと接続を閉じる。
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		slog.Warn("failed to close rabbitmq channel", slog.String("error", err.Error()))
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher はAMQP_URL未設定時に使用する何もしない実装。
type NopPublisher struct{}

// PublishScheduled は何もしない。
func (NopPublisher) PublishScheduled(context.Context, *model.JobApplication, []*model.FollowUp) error {
	return nil
}

var (
	_ FollowUpPublisher = (*AMQPPublisher)(nil)
	_ FollowUpPublisher = NopPublisher{}
)
