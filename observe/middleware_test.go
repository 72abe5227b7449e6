package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

func TestMiddleware_SetsCorrelationID(t *testing.T) {
	m, _, _ := testSetup(t)

	var captured string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(captured) != 32 {
		t.Fatalf("correlation id = %q, want 32 hex chars", captured)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != captured {
		t.Errorf("X-Correlation-ID = %q, want %q", got, captured)
	}
}

func TestMiddleware_RecordsSpanAndDuration(t *testing.T) {
	m, reader, exp := testSetup(t)

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/transcribe", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP POST /api/transcribe" {
		t.Errorf("span name = %q", spans[0].Name)
	}

	met := findMetric(collect(t, reader), "memos.http.request.duration")
	if met == nil {
		t.Fatal("memos.http.request.duration not recorded")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(hist.DataPoints))
	}
	status, ok := hist.DataPoints[0].Attributes.Value("status")
	if !ok || status.AsInt64() != http.StatusTeapot {
		t.Errorf("status attribute = %v", status)
	}
}

func TestMiddleware_UnknownPathsShareOneSeries(t *testing.T) {
	m, reader, exp := testSetup(t)

	h := Middleware(m)(http.NotFoundHandler())
	for _, p := range []string{"/wp-admin/setup.php", "/.env", "/a/b/c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	met := findMetric(collect(t, reader), "memos.http.request.duration")
	if met == nil {
		t.Fatal("memos.http.request.duration not recorded")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if route, _ := dp.Attributes.Value("route"); route.AsString() != RouteOther {
		t.Errorf("route attribute = %q", route.AsString())
	}
	if _, ok := dp.Attributes.Value("path"); ok {
		t.Error("raw path recorded as metric attribute")
	}
	if dp.Count != 3 {
		t.Errorf("count = %d, want 3", dp.Count)
	}
	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[0].Name != "HTTP GET other" {
		t.Errorf("span name = %q", spans[0].Name)
	}
}

func TestRoute(t *testing.T) {
	cases := map[string]string{
		"/health":          "/health",
		"/api/transcribe":  "/api/transcribe",
		"/metrics":         "/metrics",
		"/api/transcribe/": RouteOther,
		"/":                RouteOther,
	}
	for path, want := range cases {
		if got := Route(path); got != want {
			t.Errorf("Route(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLogger_WithoutSpan(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}
}
