package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gather pulls every registered metric family from the default registerer
// (promauto.NewX registers there unless told otherwise) and indexes them by
// name, so assertions below can inspect label names directly via the
// client_model wire types rather than scraping text output.
func gather(t *testing.T) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return byName
}

func TestInferenceMetricsRegisteredWithExpectedLabels(t *testing.T) {
	InferenceDuration.WithLabelValues("embed/test", "embed", "mock/embed").Observe(0.01)
	InferenceTotal.WithLabelValues("embed/test", "embed", "mock/embed", "success").Inc()

	families := gather(t)

	durationFamily, ok := families["model_inference_duration_seconds"]
	if !ok {
		t.Fatal("expected model_inference_duration_seconds to be registered")
	}
	if durationFamily.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatalf("expected a histogram, got %v", durationFamily.GetType())
	}

	totalFamily, ok := families["model_inference_total"]
	if !ok {
		t.Fatal("expected model_inference_total to be registered")
	}
	if totalFamily.GetType() != dto.MetricType_COUNTER {
		t.Fatalf("expected a counter, got %v", totalFamily.GetType())
	}

	var found bool
	for _, m := range totalFamily.GetMetric() {
		labels := make(map[string]string, len(m.GetLabel()))
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["alias"] == "embed/test" && labels["status"] == "success" {
			found = true
			if m.GetCounter().GetValue() < 1 {
				t.Fatalf("expected counter value >= 1, got %v", m.GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Fatal("expected a model_inference_total series labelled alias=embed/test,status=success")
	}
}

func TestLoadMetricsRegisteredWithExpectedLabels(t *testing.T) {
	LoadDuration.WithLabelValues("mock/embed", "test-model").Observe(0.2)
	LoadTotal.WithLabelValues("mock/embed", "test-model", "success").Inc()

	families := gather(t)
	if _, ok := families["model_load_duration_seconds"]; !ok {
		t.Fatal("expected model_load_duration_seconds to be registered")
	}
	if _, ok := families["model_load_total"]; !ok {
		t.Fatal("expected model_load_total to be registered")
	}
}
