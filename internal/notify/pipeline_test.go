package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/moisture-alerts/internal/sensor"
	"github.com/i474232898/moisture-alerts/internal/weather"
)

type fakeEnricher struct {
	conditions weather.Conditions
	err        error
}

func (f fakeEnricher) Current(context.Context) (weather.Conditions, error) {
	return f.conditions, f.err
}

type fakeResolver struct {
	recipients []string
	err        error
}

func (f fakeResolver) ApprovedRecipients(context.Context) ([]string, error) {
	return f.recipients, f.err
}

type sendCall struct {
	message string
	to      []string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
	block chan struct{}
}

func (f *fakeDispatcher) Send(_ context.Context, message string, to []string) ([]DispatchOutcome, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{message: message, to: append([]string(nil), to...)})
	if f.err != nil {
		return nil, f.err
	}
	outcomes := make([]DispatchOutcome, 0, len(to))
	for _, n := range to {
		outcomes = append(outcomes, DispatchOutcome{Recipient: n, Delivered: true, CostOrError: "KES 0.8000"})
	}
	return outcomes, nil
}

func (f *fakeDispatcher) Calls() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.calls...)
}

var clearSky = weather.Conditions{Condition: weather.ConditionClear, TemperatureC: 29, HumidityPct: 40}

func newTestPipeline(enricher Enricher, resolver RecipientResolver, dispatcher Dispatcher) *Pipeline {
	p := NewPipeline(Config{Threshold: 30, Workers: 2, QueueSize: 16}, enricher, resolver, dispatcher)
	p.Start(context.Background())
	return p
}

func TestLowReadingDispatchesWithWeather(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(fakeEnricher{conditions: clearSky}, fakeResolver{recipients: []string{"+254711000001"}}, d)

	require.True(t, p.Submit(sensor.NewReading(25)))
	p.Stop()

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].message, "25%")
	assert.Contains(t, calls[0].message, "clear, 29°C, humidity 40%")
	assert.Equal(t, "Alert! Soil moisture is low: 25%. Current weather: clear, 29°C, humidity 40%.", calls[0].message)
	assert.Equal(t, []string{"+254711000001"}, calls[0].to)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Dispatched)
	assert.Equal(t, int64(1), stats.Delivered)
}

func TestReadingAtOrAboveThresholdNeverDispatches(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(fakeEnricher{conditions: clearSky}, fakeResolver{recipients: []string{"+254711000001"}}, d)

	for _, v := range []float64{30, 30.5, 50, 100} {
		assert.False(t, p.Submit(sensor.NewReading(v)))
	}
	p.Stop()

	assert.Empty(t, d.Calls())
	assert.Equal(t, int64(4), p.Stats().Skipped)
}

func TestAllRecipientsBatchedInOneCall(t *testing.T) {
	d := &fakeDispatcher{}
	recipients := []string{"+254711000001", "+254711000002", "+254711000003"}
	p := newTestPipeline(fakeEnricher{conditions: clearSky}, fakeResolver{recipients: recipients}, d)

	p.Submit(sensor.NewReading(10))
	p.Stop()

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, recipients, calls[0].to)
}

func TestEnrichmentFailureStillDispatches(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(fakeEnricher{err: weather.ErrUnavailable}, fakeResolver{recipients: []string{"+254711000001"}}, d)

	p.Submit(sensor.NewReading(12.5))
	p.Stop()

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Alert! Soil moisture is low: 12.5%.", calls[0].message)
}

func TestNilEnricher(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(nil, fakeResolver{recipients: []string{"+254711000001"}}, d)

	p.Submit(sensor.NewReading(5))
	p.Stop()

	require.Len(t, d.Calls(), 1)
	assert.NotContains(t, d.Calls()[0].message, "weather")
}

func TestNoRecipientsIsNotAnError(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(fakeEnricher{conditions: clearSky}, fakeResolver{}, d)

	p.Submit(sensor.NewReading(5))
	p.Stop()

	assert.Empty(t, d.Calls())
	assert.Equal(t, int64(1), p.Stats().NoRecipients)
	assert.Equal(t, int64(0), p.Stats().Failed)
}

func TestResolverErrorEndsJob(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(fakeEnricher{conditions: clearSky}, fakeResolver{err: errors.New("db down")}, d)

	p.Submit(sensor.NewReading(5))
	p.Stop()

	assert.Empty(t, d.Calls())
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestDispatchErrorIsolatedToJob(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("gateway unreachable")}
	p := newTestPipeline(nil, fakeResolver{recipients: []string{"+254711000001"}}, d)

	p.Submit(sensor.NewReading(5))
	p.Submit(sensor.NewReading(6))
	p.Stop()

	assert.Len(t, d.Calls(), 2)
	assert.Equal(t, int64(2), p.Stats().Failed)
}

func TestRepeatedLowReadingsEachNotify(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(nil, fakeResolver{recipients: []string{"+254711000001"}}, d)

	for i := 0; i < 3; i++ {
		p.Submit(sensor.NewReading(20))
	}
	p.Stop()

	assert.Len(t, d.Calls(), 3)
}

// TestJobKeepsTriggeringReading checks that a job reports the reading that
// created it even when newer readings are submitted while it is in flight.
func TestJobKeepsTriggeringReading(t *testing.T) {
	d := &fakeDispatcher{block: make(chan struct{})}
	p := NewPipeline(Config{Threshold: 30, Workers: 1, QueueSize: 4}, nil, fakeResolver{recipients: []string{"+254711000001"}}, d)
	p.Start(context.Background())

	p.Submit(sensor.NewReading(21))
	p.Submit(sensor.NewReading(22))
	close(d.block)
	p.Stop()

	calls := d.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].message, "21%")
	assert.Contains(t, calls[1].message, "22%")
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	d := &fakeDispatcher{block: make(chan struct{})}
	p := NewPipeline(Config{Threshold: 30, Workers: 1, QueueSize: 1}, nil, fakeResolver{recipients: []string{"+254711000001"}}, d)
	p.Start(context.Background())

	// The first job occupies the worker; give it time to leave the queue.
	p.Submit(sensor.NewReading(1))
	require.Eventually(t, func() bool { return len(p.jobs) == 0 }, time.Second, time.Millisecond)

	assert.True(t, p.Submit(sensor.NewReading(2)))

	done := make(chan bool)
	go func() { done <- p.Submit(sensor.NewReading(3)) }()
	select {
	case queued := <-done:
		assert.False(t, queued)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(d.block)
	p.Stop()

	assert.Len(t, d.Calls(), 2)
	assert.Equal(t, int64(1), p.Stats().Dropped)
}

func TestSubmitAfterStop(t *testing.T) {
	p := newTestPipeline(nil, fakeResolver{}, &fakeDispatcher{})
	p.Stop()
	p.Stop()

	assert.False(t, p.Submit(sensor.NewReading(1)))
	assert.Equal(t, int64(1), p.Stats().Dropped)
}

func TestStopReportsCancelledContext(t *testing.T) {
	d := &fakeDispatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(Config{Threshold: 30, Workers: 2, QueueSize: 4}, nil, fakeResolver{recipients: []string{"+254711000001"}}, d)
	p.Start(ctx)
	require.True(t, p.Submit(sensor.NewReading(10)))

	assert.ErrorIs(t, p.Stop(), context.Canceled)
	assert.Empty(t, d.Calls())
	assert.Equal(t, int64(1), p.Stats().Dropped)
	assert.NoError(t, p.Stop())
}

func TestStopAfterDrainReturnsNil(t *testing.T) {
	d := &fakeDispatcher{}
	p := newTestPipeline(nil, fakeResolver{recipients: []string{"+254711000001"}}, d)
	p.Submit(sensor.NewReading(10))

	require.NoError(t, p.Stop())
	assert.Len(t, d.Calls(), 1)
	assert.Zero(t, p.Stats().Dropped)
}

type partialDispatcher struct{}

func (partialDispatcher) Send(_ context.Context, _ string, to []string) ([]DispatchOutcome, error) {
	return []DispatchOutcome{
		{Recipient: to[0], Delivered: true, CostOrError: "KES 0.8000"},
		{Recipient: to[1], CostOrError: "InvalidPhoneNumber"},
	}, nil
}

func TestJobLogsCarryLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	p := newTestPipeline(fakeEnricher{err: weather.ErrUnavailable}, fakeResolver{recipients: []string{"+254711000001", "+254711000002"}}, partialDispatcher{})
	p.Submit(sensor.NewReading(12))
	require.NoError(t, p.Stop())

	out := buf.String()
	assert.Regexp(t, `INFO: pipeline: job \S+: enrichment failed`, out)
	assert.Regexp(t, `INFO: pipeline: job \S+: delivered to \+254711000001`, out)
	assert.Regexp(t, `ERROR: pipeline: job \S+: not delivered to \+254711000002: InvalidPhoneNumber`, out)
}

func TestEmptyPrefixUsesDefault(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewPipeline(Config{Threshold: 30}, nil, fakeResolver{recipients: []string{"+254711000001"}}, d)
	p.Start(context.Background())
	p.Submit(sensor.NewReading(5))
	require.NoError(t, p.Stop())

	calls := d.Calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].message, DefaultAlertPrefix+" "), calls[0].message)
}

func TestComposeMessage(t *testing.T) {
	r := sensor.Reading{Value: 25}
	assert.Equal(t, "Low! 25%.", ComposeMessage("Low!", r, ""))
	assert.Equal(t, "Low! 25%. Current weather: clear, 29°C, humidity 40%.", ComposeMessage("Low!", r, WeatherClause(clearSky)))
}
