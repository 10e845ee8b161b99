package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEpoch(t *testing.T) {
	before := testutil.ToFloat64(EpochsTotal)
	RecordEpoch(0.5, 0.75, true, 10*time.Millisecond)
	RecordEpoch(0.25, 0, false, 5*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(EpochsTotal))
	assert.Equal(t, 0.25, testutil.ToFloat64(EpochLoss.WithLabelValues("train")))
	assert.Equal(t, 0.75, testutil.ToFloat64(EpochLoss.WithLabelValues("validation")))
}

func TestRecordNumericalInstability(t *testing.T) {
	RecordNumericalInstability("loss", 2, 0)
	RecordNumericalInstability("loss", 0, 3)

	assert.Equal(t, float64(2), testutil.ToFloat64(NumericalInstability.WithLabelValues("loss", "nan")))
	assert.Equal(t, float64(3), testutil.ToFloat64(NumericalInstability.WithLabelValues("loss", "inf")))
}

func TestRecordRunAndArena(t *testing.T) {
	RecordRun("converged")
	assert.Equal(t, float64(1), testutil.ToFloat64(RunsTotal.WithLabelValues("converged")))

	RecordArena("training", 4096)
	assert.Equal(t, float64(4096), testutil.ToFloat64(ArenaBytes.WithLabelValues("training")))

	RecordBatch()
	RecordInference("float32", time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(InferenceDuration))
}
