package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/host"
)

func newTestTracker(t *testing.T, duration time.Duration, initial *float64) (*Tracker, *host.Memory, *events.Recorder) {
	t.Helper()
	mem := host.NewMemory()
	if initial != nil {
		require.NoError(t, mem.SaveBalance(context.Background(), *initial))
		mem.BalanceSaves = nil
	}
	rec := &events.Recorder{}
	tr := NewTracker(&config.BalanceConfig{AnimationDuration: duration, FrameInterval: 2 * time.Millisecond}, mem, rec, nil)
	require.NoError(t, tr.Load(context.Background()))
	return tr, mem, rec
}

func frames(rec *events.Recorder) []events.BalanceFramePayload {
	var out []events.BalanceFramePayload
	for _, p := range rec.OfType(events.TypeBalanceFrame) {
		out = append(out, p.(events.BalanceFramePayload))
	}
	return out
}

func TestUpdateLandsOnExactValueAndPersistsOnce(t *testing.T) {
	for _, d := range []time.Duration{0, time.Millisecond, 40 * time.Millisecond} {
		t.Run(d.String(), func(t *testing.T) {
			initial := 1000.0
			tr, mem, rec := newTestTracker(t, d, &initial)

			tr.Update(context.Background(), 850)
			tr.Wait()

			value, known := tr.Displayed()
			assert.True(t, known)
			assert.Equal(t, 850.0, value)
			assert.Equal(t, []float64{850}, mem.Saves())

			fs := frames(rec)
			require.NotEmpty(t, fs)
			last := fs[len(fs)-1]
			assert.Equal(t, events.BalanceFramePayload{Value: 850, Final: true}, last)
			for i, f := range fs {
				assert.LessOrEqual(t, f.Value, 1000.0)
				assert.GreaterOrEqual(t, f.Value, 850.0)
				if i > 0 {
					assert.LessOrEqual(t, f.Value, fs[i-1].Value, "frames move monotonically")
				}
			}
		})
	}
}

func TestUpdateSupersedesRunningAnimation(t *testing.T) {
	initial := 1000.0
	tr, mem, _ := newTestTracker(t, time.Second, &initial)

	tr.Update(context.Background(), 850)
	time.Sleep(10 * time.Millisecond)
	tr.Update(context.Background(), 700)
	tr.Wait()

	value, _ := tr.Displayed()
	assert.Equal(t, 700.0, value)
	assert.Equal(t, []float64{850, 700}, mem.Saves())
}

func TestUpdateWithoutKnownBalanceJumps(t *testing.T) {
	tr, mem, rec := newTestTracker(t, 50*time.Millisecond, nil)

	_, known := tr.Displayed()
	assert.False(t, known)

	tr.Update(context.Background(), 500)
	tr.Wait()

	assert.Equal(t, []events.BalanceFramePayload{{Value: 500, Final: true}}, frames(rec))
	assert.Equal(t, []float64{500}, mem.Saves())
}

func TestUpdateSurvivesCallerCancellation(t *testing.T) {
	initial := 10.0
	tr, mem, _ := newTestTracker(t, 5*time.Millisecond, &initial)

	ctx, cancel := context.WithCancel(context.Background())
	tr.Update(ctx, 20)
	cancel()
	tr.Wait()

	assert.Equal(t, []float64{20}, mem.Saves())
}

func TestSaveFailureIsLogged(t *testing.T) {
	initial := 10.0
	tr, mem, _ := newTestTracker(t, 0, &initial)
	mem.FailBalance = errors.New("storage full")

	tr.Update(context.Background(), 5)
	tr.Wait()

	value, _ := tr.Displayed()
	assert.Equal(t, 5.0, value)
}

func TestNilStore(t *testing.T) {
	tr := NewTracker(config.DefaultBalanceConfig(), nil, nil, nil)
	require.NoError(t, tr.Load(context.Background()))
	tr.Update(context.Background(), 3)
	tr.Wait()
	value, known := tr.Displayed()
	assert.True(t, known)
	assert.Equal(t, 3.0, value)
}

func TestEaseOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, EaseOutCubic(0))
	assert.Equal(t, 1.0, EaseOutCubic(1))
	assert.Equal(t, 1.0, EaseOutCubic(2))
	assert.Equal(t, 0.0, EaseOutCubic(-1))
	assert.InDelta(t, 0.875, EaseOutCubic(0.5), 1e-9)
	assert.Greater(t, EaseOutCubic(0.25), 0.25)
}
