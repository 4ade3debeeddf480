package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"brickshare-backend/internal/application/settlement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRunner) Run(ctx context.Context) (*settlement.SweepResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &settlement.SweepResult{TranchesSettled: 2}, nil
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("every now and then", &fakeRunner{}, nil)
	assert.Error(t, err)
}

func TestRunOnce_ReportsResult(t *testing.T) {
	runner := &fakeRunner{}
	var seen *settlement.SweepResult
	s, err := New("@every 5m", runner, func(ctx context.Context, r *settlement.SweepResult) { seen = r })
	require.NoError(t, err)

	res := s.RunOnce(context.Background())
	require.NotNil(t, res)
	assert.Equal(t, 2, res.TranchesSettled)
	assert.Same(t, res, seen)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRunOnce_FailureSkipsCallback(t *testing.T) {
	runner := &fakeRunner{err: errors.New("db down")}
	called := false
	s, err := New("*/5 * * * *", runner, func(context.Context, *settlement.SweepResult) { called = true })
	require.NoError(t, err)

	assert.Nil(t, s.RunOnce(context.Background()))
	assert.False(t, called)
}

func TestStartStop_Ticks(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("@every 1s", runner, nil)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
