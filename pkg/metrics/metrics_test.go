package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.Decodes.WithLabelValues("ok").Inc()
	m.Decodes.WithLabelValues("ok").Inc()
	m.Volumes.Set(3)

	if got := testutil.ToFloat64(m.Decodes.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected 2 successful decodes, got %f", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `niftiview_decodes_total{result="ok"} 2`) {
		t.Errorf("Expected decode counter in output, got:\n%s", body)
	}
	if !strings.Contains(string(body), "niftiview_volumes 3") {
		t.Errorf("Expected volume gauge in output, got:\n%s", body)
	}
}
