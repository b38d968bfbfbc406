package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/AmrMurad1/tiny-store/metrics"
)

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("probe"))
	metrics.OperationsTotal.WithLabelValues("probe").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("probe")))

	metrics.LogSizeBytes.Set(1234)
	assert.Equal(t, float64(1234), testutil.ToFloat64(metrics.LogSizeBytes))

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.CompactionDuration))
}
