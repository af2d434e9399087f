package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLifecycleTracksGauge(t *testing.T) {
	gauge := WidgetsMounted.WithLabelValues("gauge_test")
	before := testutil.ToFloat64(gauge)

	ObserveLifecycle("gauge_test", LifecycleMounted)
	ObserveLifecycle("gauge_test", LifecycleMounted)
	ObserveLifecycle("gauge_test", LifecycleDestroyed)
	ObserveLifecycle("gauge_test", LifecycleDegraded)

	assert.Equal(t, before+1, testutil.ToFloat64(gauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(WidgetLifecycle.WithLabelValues("gauge_test", LifecycleDegraded)))
}

func TestObserveDispatchResult(t *testing.T) {
	dropped := EventsDispatched.WithLabelValues("unit", "dropped")
	delivered := EventsDispatched.WithLabelValues("unit", "delivered")
	d0, l0 := testutil.ToFloat64(dropped), testutil.ToFloat64(delivered)

	ObserveDispatch("unit", 0)
	ObserveDispatch("unit", 3)

	assert.Equal(t, d0+1, testutil.ToFloat64(dropped))
	assert.Equal(t, l0+1, testutil.ToFloat64(delivered))
}

func TestHandlerExposesNamespace(t *testing.T) {
	ObserveHTTP("/healthz", http.MethodGet, http.StatusOK, time.Millisecond)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "livewidgets_http_request_duration_seconds")
}

func TestTracerProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider("livewidgets-test", "test", &buf)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "unit.span")
	span.SetAttributes(AttrPage.String("p1"))
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit.span")
	assert.Contains(t, buf.String(), "livewidgets.page")
}

func TestNilTracerProviderShutdown(t *testing.T) {
	var tp *TracerProvider
	assert.NoError(t, tp.Shutdown(context.Background()))
}
