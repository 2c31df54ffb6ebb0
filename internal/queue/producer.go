package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"userhub/api/internal/mail"
)

// MailJob is an activation email waiting for another delivery attempt.
type MailJob struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
	Message   mail.Message
}

func (j MailJob) values() map[string]any {
	return map[string]any{
		"user_id":      j.UserID,
		"token_id":     j.TokenID,
		"expires_at":   j.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"from_name":    j.Message.From.Name,
		"from_address": j.Message.From.Address,
		"to":           j.Message.To,
		"subject":      j.Message.Subject,
		"text":         j.Message.Text,
	}
}

// DecodeMailJob rebuilds a job from stream entry values.
func DecodeMailJob(values map[string]interface{}) (MailJob, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, str("expires_at"))
	if err != nil {
		return MailJob{}, fmt.Errorf("decode expires_at: %w", err)
	}
	if str("to") == "" {
		return MailJob{}, fmt.Errorf("decode mail job: missing recipient")
	}

	return MailJob{
		UserID:    str("user_id"),
		TokenID:   str("token_id"),
		ExpiresAt: expiresAt,
		Message: mail.Message{
			From:    mail.Address{Name: str("from_name"), Address: str("from_address")},
			To:      str("to"),
			Subject: str("subject"),
			Text:    str("text"),
		},
	}, nil
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) EnqueueMail(ctx context.Context, job MailJob) error {
	if p == nil || p.client == nil {
		return nil
	}
	if _, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: job.values(),
	}).Result(); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}
