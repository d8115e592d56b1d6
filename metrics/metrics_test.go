package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imdirdiff/types"
)

func TestRunCounters(t *testing.T) {
	run := NewRun("pixel")

	run.ObserveRecord(types.OnlyInARecord{Path: "a.png"})
	run.ObserveRecord(types.ChangedRecord{Path: "x.png", Score: 0.5})
	run.ObserveRecord(types.ChangedRecord{Path: "y.png", Score: 0.7})
	run.ObserveComparison(1)
	run.ObserveComparison(0.5)
	run.ObserveComparison(0.7)

	assert.InDelta(t, 1, testutil.ToFloat64(run.records.WithLabelValues(string(types.KindOnlyInA))), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(run.records.WithLabelValues(string(types.KindOnlyInB))), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(run.records.WithLabelValues(string(types.KindChanged))), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(run.comparisons), 0)
}

func TestWriteTextfile(t *testing.T) {
	run := NewRun("flip")
	run.ObserveComparison(0.875)
	run.Finish(1500*time.Millisecond, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "imdirdiff.prom")
	require.NoError(t, run.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `imdirdiff_comparisons_total{backend="flip"} 1`)
	assert.Contains(t, text, `imdirdiff_run_duration_seconds{backend="flip"} 1.5`)
	assert.Contains(t, text, `imdirdiff_last_run_timestamp_seconds{backend="flip"} 1.7e+09`)
	assert.Contains(t, text, `imdirdiff_diff_records_total{backend="flip",kind="changed"} 0`)
}

func TestWriteTextfileBadDirectory(t *testing.T) {
	run := NewRun("pixel")
	require.Error(t, run.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
