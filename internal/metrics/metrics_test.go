package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.Batch("clients", 49, 1, 20*time.Millisecond)
	r.Batch("clients", 10, 0, 5*time.Millisecond)
	r.Check("checksum", true)
	r.Check("checksum", false)
	r.Check("checksum", false)
	r.ValidationScore(87.5)
	r.CheckpointScore(90)

	assert.Equal(t, 59.0, testutil.ToFloat64(r.rowsMigrated.WithLabelValues("clients")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rowsFailed.WithLabelValues("clients")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.tableChecks.WithLabelValues("checksum", "failed")))
	assert.Equal(t, 87.5, testutil.ToFloat64(r.validationScore))
	assert.Equal(t, 90.0, testutil.ToFloat64(r.checkpointScore))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Batch("x", 1, 0, time.Second)
		r.Check("x", true)
		r.ValidationScore(1)
		r.CheckpointScore(1)
	})
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "unused.prom")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Batch("tenants", 3, 0, time.Millisecond)

	path := filepath.Join(t.TempDir(), "dbshift.prom")
	require.NoError(t, r.WriteTextfile(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), `dbshift_rows_migrated_total{table="tenants"} 3`))
}
