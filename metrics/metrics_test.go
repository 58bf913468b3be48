package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/venus-fvm/config"
	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func TestInt64Counter(t *testing.T) {
	tf.BadUnitTestWithSideEffects(t)

	ctx := context.Background()
	c := NewInt64Counter("test/counter", "counter under test")
	c.Inc(ctx, 2)
	c.Inc(ctx, 3)

	rows, err := view.RetrieveData(c.Name())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	sum, ok := rows[0].Data.(*view.SumData)
	require.True(t, ok)
	assert.Equal(t, float64(5), sum.Value)
}

func TestTimer(t *testing.T) {
	tf.BadUnitTestWithSideEffects(t)

	ctx := context.Background()
	timer := NewTimerMs("test/timer", "timer under test")
	d := timer.Start(ctx).Stop(ctx)
	assert.True(t, d >= 0)

	rows, err := view.RetrieveData("test/timer")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	dist, ok := rows[0].Data.(*view.DistributionData)
	require.True(t, ok)
	assert.Equal(t, int64(1), dist.Count)
}

func TestPrometheusHandler(t *testing.T) {
	tf.BadUnitTestWithSideEffects(t)

	handler, err := NewPrometheusHandler("fvmtest")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRegisterJaeger(t *testing.T) {
	tf.BadUnitTestWithSideEffects(t)

	cfg := config.NewDefaultConfig().Tracing
	je, err := RegisterJaeger("fvm-tool", cfg)
	require.NoError(t, err)
	assert.Nil(t, je)
	UnregisterJaeger(je)

	cfg.JaegerTracingEnabled = true
	cfg.JaegerEndpoint = "127.0.0.1:6831"
	je, err = RegisterJaeger("fvm-tool", cfg)
	require.NoError(t, err)
	require.NotNil(t, je)
	UnregisterJaeger(je)
}

func TestInt64CounterTagged(t *testing.T) {
	tf.BadUnitTestWithSideEffects(t)

	ctx := context.Background()
	c := NewInt64Counter("test/tagged_counter", "tagged counter under test", ExitCodeKey)
	c.IncWith(ctx, 1, tag.Upsert(ExitCodeKey, "SysErrOutOfGas"))
	c.IncWith(ctx, 2, tag.Upsert(ExitCodeKey, "SysErrOutOfGas"))
	c.IncWith(ctx, 4, tag.Upsert(ExitCodeKey, "SysErrForbidden"))

	rows, err := view.RetrieveData(c.Name())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	sums := map[string]float64{}
	for _, row := range rows {
		require.Len(t, row.Tags, 1)
		sums[row.Tags[0].Value] = row.Data.(*view.SumData).Value
	}
	assert.Equal(t, map[string]float64{"SysErrOutOfGas": 3, "SysErrForbidden": 4}, sums)
}
