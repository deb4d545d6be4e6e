package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
)

func TestSwitchMetrics_Observe(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.Observe(ctx, switcher.Record{Service: "mpd", Outcome: switcher.OutcomeSuccess, Confirmed: true, Duration: time.Second})
	m.Observe(ctx, switcher.Record{Service: "mpd", Outcome: switcher.OutcomeSuccess, Confirmed: true, Duration: 2 * time.Second})
	m.Observe(ctx, switcher.Record{Service: "doesnotexist", Outcome: switcher.OutcomeInvalid})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("mpd", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("unknown", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmed), "rejected attempts leave the gauge alone")

	m.Observe(ctx, switcher.Record{
		Service: "spotify",
		Outcome: switcher.OutcomeUnconfirmed,
		Steps: []switcher.StepRecord{
			{Step: switcher.StepStop, ExitCode: 1},
			{Step: switcher.StepLink},
			{Step: switcher.StepStart, ExitCode: -1, Err: "timeout"},
		},
	})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.confirmed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("stop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("start")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.steps.WithLabelValues("link")))
}

func TestSwitchMetrics_InvalidKeysShareOneSeries(t *testing.T) {
	m := New()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		m.Observe(ctx, switcher.Record{Service: fmt.Sprintf("junk-%d", i), Outcome: switcher.OutcomeInvalid})
	}
	m.Observe(ctx, switcher.Record{Service: "mpd", Outcome: switcher.OutcomeSuccess})

	assert.Equal(t, 2, testutil.CollectAndCount(m.attempts))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.attempts.WithLabelValues("unknown", "invalid")))
}

func TestSwitchMetrics_NilIsNoop(t *testing.T) {
	var m *SwitchMetrics
	assert.NotPanics(t, func() {
		m.Observe(context.Background(), switcher.Record{Service: "mpd", Outcome: switcher.OutcomeSuccess})
	})
}

func TestSwitchMetrics_Handler(t *testing.T) {
	m := New()
	m.Observe(context.Background(), switcher.Record{Service: "qobuz", Outcome: switcher.OutcomeBusy})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `playerswitch_switch_attempts_total{outcome="busy",service="qobuz"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
