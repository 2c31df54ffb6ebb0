package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"userhub/api/internal/mail"
	"userhub/api/internal/queue"
)

// MailProcessor re-delivers queued activation emails. Entries whose token has
// already expired are dropped: the link in them can no longer be redeemed.
type MailProcessor struct {
	sender mail.Sender
	now    func() time.Time
	logger zerolog.Logger
}

func NewMailProcessor(sender mail.Sender, now func() time.Time, logger zerolog.Logger) *MailProcessor {
	if now == nil {
		now = time.Now
	}
	return &MailProcessor{sender: sender, now: now, logger: logger}
}

func (p *MailProcessor) Handle(ctx context.Context, msg redis.XMessage) error {
	job, err := queue.DecodeMailJob(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed mail job")
		return nil
	}

	if !p.now().Before(job.ExpiresAt) {
		p.logger.Info().
			Str("token_id", job.TokenID).
			Str("user_id", job.UserID).
			Msg("activation token expired, mail job dropped")
		return nil
	}

	if err := p.sender.Send(ctx, job.Message); err != nil {
		return fmt.Errorf("resend activation mail: %w", err)
	}

	p.logger.Info().
		Str("token_id", job.TokenID).
		Str("user_id", job.UserID).
		Msg("activation mail delivered on retry")
	return nil
}
