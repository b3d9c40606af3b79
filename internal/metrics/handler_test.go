package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSendSuccess()
	c.RecordSendFailure("delivery")
	c.RecordAuthorizationRequired("send_application")
	c.RecordGatewayStatus(http.StatusUnauthorized)
	c.RecordSendLatency(120 * time.Millisecond)
	c.RecordFollowUpsScheduled(2)
	c.RecordSessionsCleaned(4)

	handler := SetupMetricsRoute(reg)

	t.Run("serves exposition", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		body, _ := io.ReadAll(w.Body)

		for _, want := range []string{
			"reapply_send_success_total 1",
			`reapply_send_fail_total{reason="delivery"} 1`,
			`reapply_authorization_required_total{purpose="send_application"} 1`,
			`reapply_gateway_status_total{status_code="401"} 1`,
			"reapply_send_latency_seconds_count 1",
			"reapply_followups_scheduled_total 2",
			"reapply_sessions_cleaned_total 4",
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("exposition missing %q", want)
			}
		}
	})

	t.Run("other paths are not served", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pipeline", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
