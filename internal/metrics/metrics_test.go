package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"carbonweaver/internal/trace"
)

func TestRecorder_CountsDecisions(t *testing.T) {
	r := New("run-1")
	r.Record(trace.TraceEvent{Kind: trace.EventTaskExecuted, Op: "reclassify", Elapsed: 2 * time.Millisecond})
	r.Record(trace.TraceEvent{Kind: trace.EventTaskExecuted, Op: "raster_sum"})
	r.Record(trace.TraceEvent{Kind: trace.EventTaskCached})
	r.Record(trace.TraceEvent{Kind: trace.EventTaskFailed})

	require.Equal(t, 2.0, testutil.ToFloat64(r.tasks.WithLabelValues("completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.tasks.WithLabelValues("cached")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.tasks.WithLabelValues("failed")))
	require.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New("run-2")
	r.Record(trace.TraceEvent{Kind: trace.EventTaskSkipped})

	path := filepath.Join(t.TempDir(), TextfileName)
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `carbonweaver_tasks_total{run_id="run-2",state="skipped"} 1`)
}
