package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCommit(t *testing.T) {
	ok := testutil.ToFloat64(commitsTotal.WithLabelValues(ResultOK))
	failed := testutil.ToFloat64(commitsTotal.WithLabelValues(ResultFailed))

	RecordCommit(nil)
	RecordCommit(errors.New("no room"))
	RecordCommit(nil)

	assert.Equal(t, ok+2, testutil.ToFloat64(commitsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, failed+1, testutil.ToFloat64(commitsTotal.WithLabelValues(ResultFailed)))
}

func TestRecordImportSetsGaugeOnSuccessOnly(t *testing.T) {
	RecordImport("manual", 4, nil)
	assert.Equal(t, 4.0, testutil.ToFloat64(importedBlocks))

	RecordImport("manual", 0, errors.New("decode"))
	assert.Equal(t, 4.0, testutil.ToFloat64(importedBlocks))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRequest("GET", "/api/week", 200, 3*time.Millisecond)
	RecordCompletion()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `weekplan_http_requests_total{method="GET",route="/api/week",status="200"}`)
	assert.Contains(t, string(body), "weekplan_todo_completions_total")
}
