package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDetect(t *testing.T) {
	m := New()
	m.ObserveDetect("white", 120*time.Millisecond, 3, nil)
	m.ObserveDetect("white", 40*time.Millisecond, 0, errors.New("boom"))
	m.ObserveDetect("normal", 10*time.Millisecond, 2, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.detections.WithLabelValues("white", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detections.WithLabelValues("white", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.molds))
	assert.Equal(t, uint64(2), m.LastMolds.Load(), "failed passes keep the last count")
	assert.Equal(t, uint64(10), m.LastElapsedMs.Load())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetProcessing(true)
	m.ObserveDetect("eyedropper", time.Second, 1, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `moldmeasure_detections_total{result="ok",strategy="eyedropper"} 1`)
	assert.Contains(t, text, "moldmeasure_processing 1")
	assert.True(t, strings.Contains(text, "moldmeasure_detection_duration_seconds_bucket"))
}
