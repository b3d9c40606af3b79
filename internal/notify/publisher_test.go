package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hitoshi/reapply/internal/model"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	failAt    int
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.failAt > 0 && len(f.published)+1 == f.failAt {
		return errors.New("channel closed")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func testApplication() *model.JobApplication {
	return &model.JobApplication{
		ID:             "app-1",
		UserID:         "user-1",
		RecruiterEmail: "hr@acme.com",
		EmailThreadID:  "thread-1",
	}
}

func testFollowUps() []*model.FollowUp {
	at := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	return []*model.FollowUp{
		{ID: "f-1", ScheduledAt: at, Subject: "s1", Body: "b1", Timing: model.TimingImmediate, CreatedAt: at},
		{ID: "f-2", ScheduledAt: at.AddDate(0, 0, 1), Subject: "s2", Body: "b2", Timing: model.TimingTomorrow, CreatedAt: at},
	}
}

func TestAMQPPublisher_PublishesOneMessagePerFollowUp(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, queue: DefaultQueue}

	if err := p.PublishScheduled(context.Background(), testApplication(), testFollowUps()); err != nil {
		t.Fatalf("PublishScheduled() error = %v", err)
	}
	if len(ch.published) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(ch.published))
	}

	msg := ch.published[1]
	if ch.keys[1] != DefaultQueue {
		t.Errorf("routing key = %q, want %q", ch.keys[1], DefaultQueue)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Error("messages should be persistent")
	}
	if msg.MessageId != "f-2" || msg.ContentType != "application/json" {
		t.Errorf("publishing = %+v", msg)
	}

	var body ScheduledMessage
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("invalid message body: %v", err)
	}
	if body.ApplicationID != "app-1" || body.RecruiterEmail != "hr@acme.com" || body.ThreadID != "thread-1" {
		t.Errorf("body = %+v", body)
	}
	if body.Timing != "tomorrow" || body.Subject != "s2" {
		t.Errorf("body = %+v", body)
	}
}

func TestAMQPPublisher_StopsOnError(t *testing.T) {
	ch := &fakeChannel{failAt: 1}
	p := &AMQPPublisher{ch: ch, queue: DefaultQueue}

	if err := p.PublishScheduled(context.Background(), testApplication(), testFollowUps()); err == nil {
		t.Fatal("expected error")
	}
	if len(ch.published) != 0 {
		t.Errorf("expected no messages, got %d", len(ch.published))
	}
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, queue: DefaultQueue}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !ch.closed {
		t.Error("channel should be closed")
	}
}

func TestNopPublisher(t *testing.T) {
	if err := (NopPublisher{}).PublishScheduled(context.Background(), testApplication(), testFollowUps()); err != nil {
		t.Errorf("NopPublisher error = %v", err)
	}
}
