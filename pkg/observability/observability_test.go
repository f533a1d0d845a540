package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/dsl"
	"github.com/aretw0/mosaic/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engine(t *testing.T, hooks domain.LifecycleHooks) *mosaic.Engine {
	t.Helper()
	def, err := dsl.New("metrics").
		Cell("in.value", domain.Int(1)).
		Handler("ok").Inputs("in.value").Outputs("ok.out").
		Do(func(_ context.Context, a domain.Args) (domain.Result, error) { return domain.Update(a.Input(0)), nil }).
		Handler("broken").Inputs("in.value").Outputs("broken.out").
		Do(func(context.Context, domain.Args) (domain.Result, error) { return domain.Result{}, errors.New("boom") }).
		Build()
	require.NoError(t, err)

	e, err := mosaic.New(def, mosaic.WithLifecycleHooks(hooks))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg, "")
	require.NoError(t, err)

	e := engine(t, m.Hooks())
	ctx := context.Background()
	_, err = e.Start(ctx)
	require.NoError(t, err)
	_, err = e.Set(ctx, domain.Cell("in", "value"), domain.Int(2))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "mosaic_passes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	runs := map[string]float64{}
	for _, f := range families {
		switch f.GetName() {
		case "mosaic_passes_total":
			assert.Equal(t, 2.0, f.GetMetric()[0].GetCounter().GetValue())
		case "mosaic_handler_runs_total":
			for _, metric := range f.GetMetric() {
				labels := map[string]string{}
				for _, l := range metric.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				runs[labels["handler"]+"/"+labels["outcome"]] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"ok/updated": 2, "broken/failed": 2}, runs)

	_, err = observability.NewMetrics(reg, "")
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSON(&buf, slog.LevelDebug)

	e := engine(t, observability.LoggingHooks(logger))
	_, err := e.Start(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"pass_start"`)
	assert.Contains(t, out, `"msg":"pass_end"`)
	assert.Contains(t, out, `"level":"WARN","msg":"handler_end"`)
	assert.Contains(t, out, `"err":"handler broken failed: boom"`)
}
