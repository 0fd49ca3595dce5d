package attack

import (
	"NetDeviation/internal/model"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModule struct {
	name      string
	magnitude int
	err       error
	ran       *[]string
}

func (m *stubModule) Name() string { return m.name }
func (m *stubModule) Type() string { return "stub" }

func (m *stubModule) Execute(_ context.Context, _ string, rec *model.AttackRecord) error {
	*m.ran = append(*m.ran, m.name)
	rec.Magnitude = m.magnitude
	return m.err
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestSequencer_ContinuesAfterModuleFailures(t *testing.T) {
	var ran []string
	errSocket := errors.New("operation not permitted")
	modules := []Module{
		&stubModule{name: "m1", magnitude: 1000, ran: &ran},
		&stubModule{name: "m2", magnitude: 17, err: errSocket, ran: &ran},
		&stubModule{name: "m3", magnitude: 100, ran: &ran},
		&stubModule{name: "m4", err: errSocket, ran: &ran},
		&stubModule{name: "m5", magnitude: 8, ran: &ran},
	}

	seq := NewSequencer(modules, WithSleep(noSleep))
	attackLog, err := seq.RunAll(context.Background(), "run-1", "127.0.0.1")
	require.Error(t, err)

	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ran)
	require.Len(t, attackLog.Records, 5)
	assert.ErrorIs(t, err, model.ErrModuleSendFailure)
	assert.ErrorIs(t, err, errSocket)

	failed := attackLog.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "m2", failed[0].Module)
	assert.Equal(t, "m4", failed[1].Module)
	assert.Equal(t, 17, failed[0].Magnitude)

	for _, rec := range attackLog.Records {
		assert.Equal(t, "127.0.0.1", rec.Target)
		assert.False(t, rec.StartTime.IsZero())
		assert.False(t, rec.EndTime.Before(rec.StartTime))
	}

	var modErr *model.ModuleError
	require.ErrorAs(t, err, &modErr)
	assert.Equal(t, "m2", modErr.Module)
}

func TestSequencer_PausesBetweenModules(t *testing.T) {
	var ran []string
	var sleeps []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	modules := []Module{
		&stubModule{name: "a", ran: &ran},
		&stubModule{name: "b", ran: &ran},
		&stubModule{name: "c", ran: &ran},
	}

	seq := NewSequencer(modules, WithSleep(sleep), WithWarmUp(2*time.Second), WithPause(3*time.Second))
	_, err := seq.RunAll(context.Background(), "run-2", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second}, sleeps)
}

func TestSequencer_CancelStopsBeforeNextModule(t *testing.T) {
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	modules := []Module{
		&stubModule{name: "a", ran: &ran},
		&stubModule{name: "b", ran: &ran},
	}
	sleep := func(ctx context.Context, d time.Duration) error {
		if d == time.Second {
			cancel()
		}
		return ctx.Err()
	}

	seq := NewSequencer(modules, WithSleep(sleep), WithWarmUp(0), WithPause(time.Second))
	attackLog, err := seq.RunAll(ctx, "run-3", "127.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, ran)
	require.Len(t, attackLog.Records, 2)
	assert.Empty(t, attackLog.Records[0].Error)
	assert.Equal(t, "b", attackLog.Records[1].Module)
	assert.Equal(t, context.Canceled.Error(), attackLog.Records[1].Error)
}

func TestSequencer_CancelDuringWarmUpRecordsEveryModule(t *testing.T) {
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	modules := []Module{
		&stubModule{name: "a", ran: &ran},
		&stubModule{name: "b", ran: &ran},
		&stubModule{name: "c", ran: &ran},
	}

	seq := NewSequencer(modules, WithSleep(sleepContext), WithWarmUp(time.Hour))
	attackLog, err := seq.RunAll(ctx, "run-5", "127.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ran)
	require.Len(t, attackLog.Records, 3)
	for _, rec := range attackLog.Records {
		assert.Equal(t, context.Canceled.Error(), rec.Error)
	}
	assert.Len(t, attackLog.Failed(), 3)
}

func TestSequencer_PreflightFailureIsNotFatal(t *testing.T) {
	orig := CheckPingFunc
	defer func() { CheckPingFunc = orig }()
	var pinged string
	CheckPingFunc = func(ip string) (time.Duration, error) {
		pinged = ip
		return 0, errors.New("no echo reply")
	}

	var ran []string
	seq := NewSequencer([]Module{&stubModule{name: "a", ran: &ran}}, WithSleep(noSleep), WithPreflight(true))
	_, err := seq.RunAll(context.Background(), "run-4", "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", pinged)
	assert.Equal(t, []string{"a"}, ran)
}
