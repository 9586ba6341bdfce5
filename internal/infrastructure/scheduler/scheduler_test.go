package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func newTestScheduler() *Scheduler {
	return NewScheduler(SchedulerConfig{TickInterval: 10 * time.Millisecond})
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	job := &funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&funcJob{name: "b"}, nil), ErrNilSchedule)

	info, err := s.GetJobInfo("a")
	require.NoError(t, err)
	assert.Equal(t, "@every 1h0m0s", info.Schedule)
	assert.True(t, info.Enabled)

	_, err = s.GetJobInfo("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int64
	job := &funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(20*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.False(t, s.IsRunning())
}

func TestScheduler_NoOverlappingRuns(t *testing.T) {
	s := newTestScheduler()

	var active, maxActive atomic.Int64
	job := &funcJob{name: "slow", run: func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int64(1), maxActive.Load())
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := newTestScheduler()

	started := make(chan struct{})
	job := &funcJob{name: "blocking", run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}
	require.NoError(t, s.Stop())

	info, err := s.GetJobInfo("blocking")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.FailCount)
	assert.False(t, info.Running)
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("boom")

	var fail atomic.Bool
	job := &funcJob{name: "manual", run: func(context.Context) error {
		if fail.Load() {
			return boom
		}
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	var completed []JobResult
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r) })

	result, err := s.RunNow(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Manual)

	fail.Store(true)
	result, err = s.RunNow(context.Background(), "manual")
	assert.ErrorIs(t, err, boom)
	assert.False(t, result.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.GetHistory(0)
	require.Len(t, history, 2)
	assert.True(t, history[0].Success)
	assert.False(t, history[1].Success)
	assert.Len(t, s.GetHistory(1), 1)
	assert.Len(t, completed, 2)

	info, err := s.GetJobInfo("manual")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
	assert.False(t, info.LastResult.Success)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int64
	job := &funcJob{name: "off", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.DisableJob("off"))
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, runs.Load())
	assert.Len(t, s.ListJobs(), 1)
}
