package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *SchedulerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestSchedulerMetricsCarryConstructorService(t *testing.T) {
	m := NewSchedulerMetrics("api")
	m.TaskEnqueued("interactive")
	m.TaskCompleted("interactive", 10*time.Millisecond, nil)
	m.RecordEscalation("merged")
	m.RetrainFinished(time.Second, 42, nil)

	body := scrape(t, m)
	for _, want := range []string{
		`sortmeister_analysis_tasks_enqueued_total{priority="interactive",service="api"} 1`,
		`sortmeister_analysis_tasks_completed_total{priority="interactive",service="api",status="success"} 1`,
		`sortmeister_suggest_escalations_total{outcome="merged",service="api"} 1`,
		`sortmeister_classifier_retrain_total{service="api",status="success"} 1`,
		`sortmeister_classifier_corpus_size{service="api"} 42`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape:\n%s", want, body)
		}
	}
	if strings.Contains(body, `service="worker"`) {
		t.Fatalf("foreign service label leaked into scrape:\n%s", body)
	}
}

func TestSchedulerMetricsCountFailures(t *testing.T) {
	m := NewSchedulerMetrics("worker")
	m.TaskEnqueued("prefetch-background")
	m.TaskCompleted("prefetch-background", time.Millisecond, errors.New("boom"))
	m.RetrainFinished(time.Second, 0, errors.New("boom"))

	body := scrape(t, m)
	for _, want := range []string{
		`sortmeister_analysis_tasks_completed_total{priority="prefetch-background",service="worker",status="error"} 1`,
		`sortmeister_classifier_retrain_total{service="worker",status="error"} 1`,
		`sortmeister_analysis_tasks_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape:\n%s", want, body)
		}
	}
}
