package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

type recordingRunner struct {
	ranges []domain.DateRange
	err    error
}

func (r *recordingRunner) Run(_ context.Context, dr domain.DateRange) error {
	r.ranges = append(r.ranges, dr)
	return r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWindow(t *testing.T) {
	s := New(&recordingRunner{}, time.Hour, 7, 0, discard())

	now := time.Date(2024, 10, 8, 15, 30, 0, 0, time.UTC)
	r := s.window(now)

	assert.Equal(t, time.Date(2024, 10, 2, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC), r.End)
	assert.Equal(t, 7, r.Days())
}

func TestWindowDefaultsToSevenDays(t *testing.T) {
	s := New(&recordingRunner{}, time.Hour, 0, 0, discard())
	assert.Equal(t, 7, s.windowDays)
}

func TestRunJobUsesClock(t *testing.T) {
	frozen := time.Date(2024, 10, 8, 6, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	defer domain.SetClock(nil)

	runner := &recordingRunner{}
	s := New(runner, time.Hour, 3, time.Minute, discard())
	s.runJob()

	require.Len(t, runner.ranges, 1)
	assert.Equal(t, "2024-10-06_2024-10-08", runner.ranges[0].String())
}

func TestRunJobSurvivesRunnerError(t *testing.T) {
	runner := &recordingRunner{err: errors.New("provider down")}
	s := New(runner, time.Hour, 7, 0, discard())

	// Must not panic; the failure is logged and the next tick retries.
	s.runJob()
	assert.Len(t, runner.ranges, 1)
}
