package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	reading ProviderReading
	err     error
	delay   time.Duration
	// ignoreCtx makes the provider sleep through cancellation.
	ignoreCtx bool
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Fetch(ctx context.Context, _ Location) (ProviderReading, error) {
	if f.delay > 0 && f.ignoreCtx {
		time.Sleep(f.delay)
	} else if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ProviderReading{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.reading, f.err
}

var farm = Location{City: "Nakuru", Country: "KE"}

func TestCurrentAggregatesSuccesses(t *testing.T) {
	svc := NewService(farm, []Provider{
		fakeProvider{name: "a", reading: ProviderReading{ProviderName: "a", TemperatureC: 28, HumidityPct: 40, Condition: ConditionClear}},
		fakeProvider{name: "b", err: errors.New("boom")},
		fakeProvider{name: "c", reading: ProviderReading{ProviderName: "c", TemperatureC: 30, HumidityPct: 44, Condition: ConditionCloudy}},
	}, time.Second)

	c, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 29, c.TemperatureC, 0.001)
	assert.InDelta(t, 42, c.HumidityPct, 0.001)
	// Tie goes to the first provider.
	assert.Equal(t, ConditionClear, c.Condition)
	assert.Len(t, c.Providers, 2)
	assert.Equal(t, farm, c.Location)
}

func TestCurrentAllFail(t *testing.T) {
	svc := NewService(farm, []Provider{fakeProvider{name: "a", err: errors.New("boom")}}, time.Second)

	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCurrentNoProviders(t *testing.T) {
	_, err := NewService(farm, nil, time.Second).Current(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCurrentTimesOut(t *testing.T) {
	svc := NewService(farm, []Provider{fakeProvider{name: "slow", delay: 5 * time.Second}}, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Current(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSummary(t *testing.T) {
	c := Conditions{Condition: ConditionClear, TemperatureC: 29, HumidityPct: 40}
	assert.Equal(t, "clear, 29°C, humidity 40%", c.Summary())
}

func TestAggregateEmpty(t *testing.T) {
	c := AggregateReadings(farm, nil)
	assert.Equal(t, ConditionUnknown, c.Condition)
	assert.False(t, c.Timestamp.IsZero())
}

func TestCurrentAbandonsProvidersIgnoringContext(t *testing.T) {
	svc := NewService(farm, []Provider{
		fakeProvider{name: "stuck", delay: 2 * time.Second, ignoreCtx: true},
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCurrentKeepsResultsArrivedBeforeDeadline(t *testing.T) {
	svc := NewService(farm, []Provider{
		fakeProvider{name: "fast", reading: ProviderReading{ProviderName: "fast", TemperatureC: 21, HumidityPct: 60, Condition: ConditionRain}},
		fakeProvider{name: "stuck", delay: 2 * time.Second, ignoreCtx: true},
	}, 100*time.Millisecond)

	start := time.Now()
	c, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.InDelta(t, 21, c.TemperatureC, 0.001)
	assert.Equal(t, ConditionRain, c.Condition)
	assert.Len(t, c.Providers, 1)
}
