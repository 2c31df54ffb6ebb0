package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/api/internal/config"
)

type fakeStream struct {
	claimIdle time.Duration
	claims    int
	trimmedTo int64
	err       error
}

func (f *fakeStream) ClaimStalled(ctx context.Context, minIdle time.Duration) (int, error) {
	f.claims++
	f.claimIdle = minIdle
	return 2, f.err
}

func (f *fakeStream) Trim(ctx context.Context, maxLen int64) error {
	f.trimmedTo = maxLen
	return f.err
}

func testConfig() config.WorkerConfig {
	return config.WorkerConfig{
		ClaimMinIdle:    time.Minute,
		ClaimSchedule:   "0 */1 * * * *",
		TrimSchedule:    "0 0 3 * * *",
		StreamMaxLength: 500,
	}
}

func TestSchedulerJobsCallStream(t *testing.T) {
	stream := &fakeStream{}
	s := NewScheduler(stream, testConfig(), zerolog.Nop())

	s.claimStalled()
	s.trimStream()

	assert.Equal(t, 1, stream.claims)
	assert.Equal(t, time.Minute, stream.claimIdle)
	assert.EqualValues(t, 500, stream.trimmedTo)
}

func TestSchedulerJobsSwallowErrors(t *testing.T) {
	stream := &fakeStream{err: errors.New("redis down")}
	s := NewScheduler(stream, testConfig(), zerolog.Nop())

	assert.NotPanics(t, s.claimStalled)
	assert.NotPanics(t, s.trimStream)
}

func TestSchedulerStartRegistersEntries(t *testing.T) {
	s := NewScheduler(&fakeStream{}, testConfig(), zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	assert.Len(t, s.cron.Entries(), 2)
}

func TestSchedulerSkipsTrimWithoutLimit(t *testing.T) {
	cfg := testConfig()
	cfg.StreamMaxLength = 0
	s := NewScheduler(&fakeStream{}, cfg, zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	assert.Len(t, s.cron.Entries(), 1)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.ClaimSchedule = "every minute"
	s := NewScheduler(&fakeStream{}, cfg, zerolog.Nop())
	assert.Error(t, s.Start())
}
