package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordProviderRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "transcribe", "ok")
	m.RecordProviderRequest(ctx, "transcribe", "ok")
	m.RecordProviderRequest(ctx, "summarize", "error")

	met := findMetric(collect(t, reader), "memos.provider.requests")
	if met == nil {
		t.Fatal("memos.provider.requests not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}

	want := map[string]int64{"transcribe/ok": 2, "summarize/error": 1}
	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		stage, _ := dp.Attributes.Value(attribute.Key("stage"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		got[stage.AsString()+"/"+status.AsString()] = dp.Value
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d", k, got[k], v)
		}
	}
}

func TestRecordRejectedUpload(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRejectedUpload(context.Background(), "too_large")

	met := findMetric(collect(t, reader), "memos.upload.rejected")
	if met == nil {
		t.Fatal("memos.upload.rejected not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected data points: %+v", sum.DataPoints)
	}
}

func TestHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TranscribeDuration.Record(ctx, 3.2)
	m.SummarizeDuration.Record(ctx, 0.8)
	m.UploadSize.Record(ctx, 1<<20)

	rm := collect(t, reader)
	for _, name := range []string{"memos.transcribe.duration", "memos.summarize.duration"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("%s not found", name)
		}
		h := met.Data.(metricdata.Histogram[float64])
		if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 1 {
			t.Errorf("%s: unexpected data points %+v", name, h.DataPoints)
		}
	}

	met := findMetric(rm, "memos.upload.size")
	if met == nil {
		t.Fatal("memos.upload.size not found")
	}
	h := met.Data.(metricdata.Histogram[int64])
	if h.DataPoints[0].Sum != 1<<20 {
		t.Errorf("upload size sum = %d", h.DataPoints[0].Sum)
	}
}
