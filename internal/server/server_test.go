package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zephyrtronium/derivcalc"
)

func newTestServer() *Server {
	return NewServer(DefaultConfig(), zerolog.Nop())
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","service":"derivcalc"}`, w.Body.String())
}

func TestEvaluate(t *testing.T) {
	s := newTestServer()
	w := post(t, s.Handler(), `{"expression": "15 * 3"}`)
	require.Equal(t, http.StatusOK, w.Code)
	r := decode(t, w)
	assert.Equal(t, "15 * 3", r.Expression)
	assert.True(t, r.Success)
	require.NotNil(t, r.Value)
	assert.Equal(t, "45", *r.Value)
	require.Len(t, r.Steps, 5)
	assert.Equal(t, "**E** => T", r.Steps[0].Production)
	assert.Equal(t, "15 * **F** => 15 * 3", r.Steps[4].Production)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Kind)
}

func TestEvaluateWireFormat(t *testing.T) {
	s := newTestServer()
	w := post(t, s.Handler(), `{"expression": "7"}`)
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "7", m["value"])
	assert.Equal(t, []any{}, m["errorMessages"])
	steps, ok := m["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 3)
	first := steps[0].(map[string]any)
	assert.Equal(t, float64(1), first["index"])
	assert.Equal(t, "E", first["expandedSymbol"])
	assert.Equal(t, []any{"E"}, first["before"])
	assert.Equal(t, []any{"T"}, first["after"])
	assert.NotContains(t, m, "errorKind")
}

func TestEvaluateFailure(t *testing.T) {
	cases := []struct {
		src   string
		kind  string
		steps int
	}{
		{"5 / 0", "division_by_zero", 5},
		{"", "empty_expression", 0},
		{"1 + 2 )", "trailing_tokens", 0},
		{"2 # 2", "unexpected_character", 0},
		{"cos(1)", "unknown_function", 0},
		{"(1", "unexpected_token", 0},
	}
	s := newTestServer()
	for _, c := range cases {
		t.Run(c.kind, func(t *testing.T) {
			body, err := json.Marshal(evaluateRequest{Expression: c.src})
			require.NoError(t, err)
			w := post(t, s.Handler(), string(body))
			require.Equal(t, http.StatusOK, w.Code)
			r := decode(t, w)
			assert.False(t, r.Success)
			assert.Nil(t, r.Value)
			assert.Equal(t, c.kind, r.Kind)
			assert.Len(t, r.Steps, c.steps)
			assert.NotNil(t, r.Steps)
			require.Len(t, r.Errors, 1)
		})
	}
}

func TestEvaluateNonFinite(t *testing.T) {
	s := newTestServer()
	cases := map[string]string{
		"log(0)":     "-Inf",
		"log(0 - 1)": "NaN",
		"0.5":        "0.5",
	}
	for src, want := range cases {
		body, _ := json.Marshal(evaluateRequest{Expression: src})
		r := decode(t, post(t, s.Handler(), string(body)))
		require.True(t, r.Success, src)
		require.NotNil(t, r.Value, src)
		assert.Equal(t, want, *r.Value, src)
	}
}

func TestEvaluateBadRequest(t *testing.T) {
	s := newTestServer()
	w := post(t, s.Handler(), `{"expression":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = post(t, s.Handler(), ``)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty request body")

	big := `{"expression":"` + strings.Repeat("1+", maxBody) + `1"}`
	w = post(t, s.Handler(), big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evaluate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	// Malformed requests are not evaluations.
	assert.Zero(t, s.Metrics().Snapshot().Evaluations)
}

func TestRequestID(t *testing.T) {
	s := newTestServer()
	w := post(t, s.Handler(), `{"expression":"1"}`)
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(DefaultConfig(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	post(t, s.Handler(), `{"expression":"2*3"}`)
	out := buf.String()
	assert.Contains(t, out, `"path":"/evaluate"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"message":"evaluated"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	h := s.Handler()
	for _, src := range []string{"1+1", "2*2", "1/0", "1 +", "1/0"} {
		body, _ := json.Marshal(evaluateRequest{Expression: src})
		post(t, h, string(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var m MetricsSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, int64(5), m.Evaluations)
	assert.Equal(t, int64(2), m.Successes)
	assert.Equal(t, map[string]int64{"division_by_zero": 2, "unexpected_token": 1}, m.Failures)
	// 1+1 and 2*2 take six and five steps; each 1/0 takes five.
	assert.Equal(t, int64(6+5+5+5), m.Steps)
	assert.NotEmpty(t, m.Uptime)
}

func TestMarkerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Marker = derivcalc.MarkWith("<", ">")
	s := NewServer(cfg, zerolog.Nop())
	r := decode(t, post(t, s.Handler(), `{"expression":"3"}`))
	require.NotEmpty(t, r.Steps)
	assert.Equal(t, "<E> => T", r.Steps[0].Production)
}

func TestEvaluateCreatesSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	s := newTestServer()
	post(t, s.Handler(), `{"expression":"1/0"}`)
	tp.ForceFlush(context.Background())

	var found bool
	for _, span := range exporter.GetSpans() {
		if span.Name != "derivcalc.evaluate" {
			continue
		}
		found = true
		assert.True(t, span.Parent.IsValid(), "evaluation span should be a child of the request span")
		attrs := map[attribute.Key]attribute.Value{}
		for _, kv := range span.Attributes {
			attrs[kv.Key] = kv.Value
		}
		assert.Equal(t, int64(5), attrs["derivcalc.steps"].AsInt64())
		assert.False(t, attrs["derivcalc.success"].AsBool())
		assert.Equal(t, "division_by_zero", span.Status.Description)
	}
	assert.True(t, found, "no evaluation span recorded")
}

func TestInitTracerNoEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := InitTracer("derivcalc-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEvaluateCBOR(t *testing.T) {
	s := newTestServer()
	body, err := cbor.Marshal(evaluateRequest{Expression: "log(0)"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("Accept", "application/cbor; q=1")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/cbor", w.Header().Get("Content-Type"))
	var r Response
	require.NoError(t, cbor.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "log(0)", r.Expression)
	assert.True(t, r.Success)
	require.NotNil(t, r.Value)
	assert.Equal(t, "-Inf", *r.Value)
	assert.Len(t, r.Steps, 6)
}

func TestEvaluateExpressionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxExpression = 10
	s := NewServer(cfg, zerolog.Nop())
	cases := []struct {
		src    string
		status int
	}{
		{"1+2+3+4+56", http.StatusOK},
		{"1+2+3+4+567", http.StatusRequestEntityTooLarge},
		// Counted in runes, not bytes.
		{"\u2003\u2003\u2003\u20031\u2003\u2003\u2003\u2003\u2003", http.StatusOK},
	}
	for _, c := range cases {
		body, err := json.Marshal(evaluateRequest{Expression: c.src})
		require.NoError(t, err)
		w := post(t, s.Handler(), string(body))
		assert.Equal(t, c.status, w.Code, c.src)
		if c.status != http.StatusOK {
			assert.Contains(t, w.Body.String(), "limit is 10")
		}
	}
	// Rejected expressions are not evaluations.
	assert.Equal(t, int64(2), s.Metrics().Snapshot().Evaluations)
}

func TestEvaluateDefaultLimits(t *testing.T) {
	s := newTestServer()
	long := strings.Repeat("1+", derivcalc.DefaultMaxLength/2) + "1"
	body, _ := json.Marshal(evaluateRequest{Expression: long})
	w := post(t, s.Handler(), string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	deep := strings.Repeat("(", derivcalc.MaxNesting+1) + "1" + strings.Repeat(")", derivcalc.MaxNesting+1)
	body, _ = json.Marshal(evaluateRequest{Expression: deep})
	r := decode(t, post(t, s.Handler(), string(body)))
	assert.False(t, r.Success)
	assert.Equal(t, "nesting_too_deep", r.Kind)
	assert.Empty(t, r.Steps)
}

func TestNewServerZeroLimit(t *testing.T) {
	s := NewServer(Config{}, zerolog.Nop())
	r := decode(t, post(t, s.Handler(), `{"expression":"1 + 1"}`))
	assert.True(t, r.Success)
}
