package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labeledCounterValues はラベル値ごとのカウンタ値を返す。
func labeledCounterValues(mf *dto.MetricFamily) map[string]float64 {
	values := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		values[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return values
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSendSuccess_IncrementsCounter は送信成功カウンタが増加することを検証する。
func TestRecordSendSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSendSuccess()
	c.RecordSendSuccess()

	mf := findMetricFamily(t, reg, "reapply_send_success_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("send_success_total = %v, want 2", val)
	}
}

// TestRecordSendFailure_CountsByReason は送信失敗が理由別に記録されることを検証する。
func TestRecordSendFailure_CountsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSendFailure("delivery")
	c.RecordSendFailure("delivery")
	c.RecordSendFailure("persistence")

	values := labeledCounterValues(findMetricFamily(t, reg, "reapply_send_fail_total"))
	if values["delivery"] != 2 {
		t.Errorf("send_fail_total{reason=delivery} = %v, want 2", values["delivery"])
	}
	if values["persistence"] != 1 {
		t.Errorf("send_fail_total{reason=persistence} = %v, want 1", values["persistence"])
	}
}

// TestRecordAuthorizationRequired_CountsByPurpose は認可誘導が目的別に記録されることを検証する。
func TestRecordAuthorizationRequired_CountsByPurpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthorizationRequired("send_application")

	values := labeledCounterValues(findMetricFamily(t, reg, "reapply_authorization_required_total"))
	if values["send_application"] != 1 {
		t.Errorf("authorization_required_total = %v, want 1", values)
	}
}

// TestRecordGatewayStatus_IncrementsCounterWithLabel はステータスコード別に記録されることを検証する。
func TestRecordGatewayStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayStatus(200)
	c.RecordGatewayStatus(200)
	c.RecordGatewayStatus(401)

	values := labeledCounterValues(findMetricFamily(t, reg, "reapply_gateway_status_total"))
	if len(values) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(values))
	}
	if values["200"] != 2 || values["401"] != 1 {
		t.Errorf("gateway_status_total = %v", values)
	}
}

// TestRecordSendLatency_ObservesHistogram は送信レイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordSendLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSendLatency(100 * time.Millisecond)
	c.RecordSendLatency(2 * time.Second)

	h := findMetricFamily(t, reg, "reapply_send_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordFollowUpsAndSessions_AddCounts は件数を加算するカウンタを検証する。
func TestRecordFollowUpsAndSessions_AddCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFollowUpsScheduled(3)
	c.RecordFollowUpsScheduled(2)
	c.RecordSessionsCleaned(7)

	if val := findMetricFamily(t, reg, "reapply_followups_scheduled_total").GetMetric()[0].GetCounter().GetValue(); val != 5 {
		t.Errorf("followups_scheduled_total = %v, want 5", val)
	}
	if val := findMetricFamily(t, reg, "reapply_sessions_cleaned_total").GetMetric()[0].GetCounter().GetValue(); val != 7 {
		t.Errorf("sessions_cleaned_total = %v, want 7", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSendSuccess()
	c.RecordSendFailure("delivery")
	c.RecordGatewayStatus(200)
	c.RecordSendLatency(500 * time.Millisecond)
	c.RecordFollowUpsScheduled(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"reapply_send_success_total",
		"reapply_send_fail_total",
		"reapply_gateway_status_total",
		"reapply_send_latency_seconds",
		"reapply_followups_scheduled_total",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordSendSuccess()
	c2.RecordSendSuccess()
	c2.RecordSendSuccess()

	val1 := findMetricFamily(t, reg1, "reapply_send_success_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetricFamily(t, reg2, "reapply_send_success_total").GetMetric()[0].GetCounter().GetValue()
	if val1 != 1 {
		t.Errorf("reg1 send_success = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 send_success = %v, want 2", val2)
	}
}
