package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"userhub/api/internal/config"
)

// StreamMaintainer is the part of the mail consumer the cron jobs drive.
type StreamMaintainer interface {
	ClaimStalled(ctx context.Context, minIdle time.Duration) (int, error)
	Trim(ctx context.Context, maxLen int64) error
}

type Scheduler struct {
	cron   *cron.Cron
	stream StreamMaintainer
	cfg    config.WorkerConfig
	log    zerolog.Logger
}

func NewScheduler(stream StreamMaintainer, cfg config.WorkerConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		stream: stream,
		cfg:    cfg,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.stream == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.ClaimSchedule, s.claimStalled); err != nil {
		return err
	}
	if s.cfg.StreamMaxLength > 0 {
		if _, err := s.cron.AddFunc(s.cfg.TrimSchedule, s.trimStream); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) claimStalled() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.stream.ClaimStalled(ctx, s.cfg.ClaimMinIdle)
	if err != nil {
		s.log.Error().Err(err).Msg("claim stalled mail jobs failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("count", n).Msg("reclaimed stalled mail jobs")
	}
}

func (s *Scheduler) trimStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.stream.Trim(ctx, s.cfg.StreamMaxLength); err != nil {
		s.log.Error().Err(err).Msg("trim mail stream failed")
	}
}
