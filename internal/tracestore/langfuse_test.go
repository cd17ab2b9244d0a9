package tracestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/truckeval/internal/model"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(model.TraceStoreConfig{
		Host:       url,
		PublicKey:  "pk-test",
		SecretKey:  "sk-test",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		UserAgent:  "truckeval-test",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := storeSleepFunc
	storeSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { storeSleepFunc = orig })
}

const traceOneJSON = `{
	"id": "t1",
	"name": "chat",
	"timestamp": "2025-03-01T10:00:00.000Z",
	"observations": [
		{"id": "o1", "type": "GENERATION", "output": "Result\nValid: true"},
		{"id": "o2", "type": "SPAN", "output": null},
		{"id": "o3", "type": "GENERATION", "output": {"text": "Valid: false"}}
	],
	"scores": []
}`

const traceTwoJSON = `{
	"id": "t2",
	"observations": [],
	"scores": [{"id": "s1", "traceId": "t2", "name": "manual", "value": 1, "comment": "ok"}]
}`

func TestClient_ListTraces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "pk-test" || pass != "sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "truckeval-test" {
			t.Errorf("unexpected User-Agent %q", ua)
		}

		switch r.URL.Path {
		case "/api/public/traces":
			if got := r.URL.Query().Get("limit"); got != "2" {
				t.Errorf("expected limit=2, got %q", got)
			}
			_, _ = fmt.Fprint(w, `{"data": [{"id": "t1", "observations": ["o1"]}, {"id": "t2"}], "meta": {"page": 1}}`)
		case "/api/public/traces/t1":
			_, _ = fmt.Fprint(w, traceOneJSON)
		case "/api/public/traces/t2":
			_, _ = fmt.Fprint(w, traceTwoJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	traces, err := newTestClient(t, server.URL).ListTraces(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}

	want := []model.Trace{
		{
			ID:        "t1",
			Name:      "chat",
			Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			Observations: []model.Observation{
				{ID: "o1", Type: model.ObservationGeneration, Output: "Result\nValid: true"},
				{ID: "o2", Type: model.ObservationSpan, Output: ""},
				{ID: "o3", Type: model.ObservationGeneration, Output: `{"text": "Valid: false"}`},
			},
		},
		{
			ID:           "t2",
			Observations: []model.Observation{},
			Scores:       []model.Score{{ID: "s1", TraceID: "t2", Name: "manual", Value: 1, Comment: "ok"}},
		},
	}
	if diff := cmp.Diff(want, traces); diff != "" {
		t.Errorf("traces mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ListTraces_MissingObservationsStaysNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/traces":
			_, _ = fmt.Fprint(w, `{"data": [{"id": "t1"}, {"id": "t2"}]}`)
		case "/api/public/traces/t1":
			_, _ = fmt.Fprint(w, `{"id": "t1"}`)
		case "/api/public/traces/t2":
			_, _ = fmt.Fprint(w, `{"id": "t2", "observations": null}`)
		}
	}))
	defer server.Close()

	traces, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	for _, tr := range traces {
		if !errors.Is(tr.Validate(), model.ErrMissingObservations) {
			t.Errorf("trace %s: expected missing observations, got %v", tr.ID, tr.Validate())
		}
	}
}

func TestClient_ListTraces_SkipsVanishedTrace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/traces":
			_, _ = fmt.Fprint(w, `{"data": [{"id": "gone"}, {"id": "t2"}]}`)
		case "/api/public/traces/t2":
			_, _ = fmt.Fprint(w, traceTwoJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	traces, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	if len(traces) != 1 || traces[0].ID != "t2" {
		t.Errorf("expected only t2, got %+v", traces)
	}
}

func TestClient_ListTraces_UndecodableTraceIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/traces":
			_, _ = fmt.Fprint(w, `{"data": [{"id": "t1"}, {"id": "bad"}]}`)
		case "/api/public/traces/t1":
			_, _ = fmt.Fprint(w, traceOneJSON)
		case "/api/public/traces/bad":
			_, _ = fmt.Fprint(w, `{"id": "bad", "observations": "oops"}`)
		}
	}))
	defer server.Close()

	traces, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if err != nil {
		t.Fatalf("one undecodable trace must not fail the listing: %v", err)
	}
	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	if traces[0].ID != "t1" || len(traces[0].Observations) != 3 {
		t.Errorf("expected t1 intact, got %+v", traces[0])
	}
	if traces[1].ID != "bad" || !errors.Is(traces[1].Validate(), model.ErrMissingObservations) {
		t.Errorf("expected bad trace returned as malformed, got %+v", traces[1])
	}
}

func TestClient_ListTraces_ServerErrorStaysFatal(t *testing.T) {
	noSleep(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/traces":
			_, _ = fmt.Fprint(w, `{"data": [{"id": "t1"}, {"id": "t2"}]}`)
		case "/api/public/traces/t1":
			_, _ = fmt.Fprint(w, traceOneJSON)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_ListTraces_SkipsDetailForForeignScores(t *testing.T) {
	own := model.ScoreID("t2", "auto", "o1", 0)
	var detailHits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/traces":
			_, _ = fmt.Fprintf(w, `{"data": [
				{"id": "t1", "observations": ["o1"], "scores": ["human-1"]},
				{"id": "t2", "observations": ["o1", "o2"], "scores": [%q]}
			]}`, own)
		case "/api/public/traces/t1":
			detailHits.Add(1)
			_, _ = fmt.Fprint(w, traceOneJSON)
		case "/api/public/traces/t2":
			_, _ = fmt.Fprint(w, `{"id": "t2", "observations": [
				{"id": "o1", "type": "GENERATION", "output": "Valid: true"},
				{"id": "o2", "type": "GENERATION", "output": "Valid: false"}
			], "scores": []}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.ScoreName = "auto"

	traces, err := c.ListTraces(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}

	if n := detailHits.Load(); n != 0 {
		t.Errorf("expected no detail fetch for a trace with foreign scores, got %d", n)
	}
	want := model.Trace{
		ID:           "t1",
		Observations: []model.Observation{},
		Scores:       []model.Score{{ID: "human-1", TraceID: "t1"}},
	}
	if diff := cmp.Diff(want, traces[0]); diff != "" {
		t.Errorf("scored trace mismatch (-want +got):\n%s", diff)
	}
	if len(traces[1].Observations) != 2 {
		t.Errorf("expected trace with only own scores fetched in full, got %+v", traces[1])
	}
}

func TestClient_ListTraces_WithoutScoreNameSkipsAllScored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/public/traces" {
			t.Errorf("unexpected detail fetch %s", r.URL.Path)
		}
		_, _ = fmt.Fprint(w, `{"data": [{"id": "t1", "observations": ["o1"], "scores": ["s1"]}]}`)
	}))
	defer server.Close()

	traces, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 1 || !traces[0].IsScored() {
		t.Errorf("expected one scored trace, got %+v", traces)
	}
}

func TestClient_ListTraces_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/public/traces" {
			if attempts.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = fmt.Fprint(w, `{"data": []}`)
		}
	}))
	defer server.Close()

	traces, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if len(traces) != 0 {
		t.Errorf("expected no traces, got %d", len(traces))
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_ListTraces_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusBadGateway {
		t.Errorf("Expected wrapped 502 status, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_PermanentFailureNotRetried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"message": "invalid credentials"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ListTraces(context.Background(), 10)
	if err == nil {
		t.Fatal("Expected error for 401")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Errorf("401 must not be reported as unavailable: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("Expected response body in error, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	noSleep(t)

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url).ListTraces(context.Background(), 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable for refused connection, got %v", err)
	}
}

func TestClient_WriteScore(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/public/scores" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected Content-Type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"id": "s1"}`)
	}))
	defer server.Close()

	err := newTestClient(t, server.URL).WriteScore(context.Background(), model.Score{
		ID:            "s1",
		TraceID:       "t1",
		ObservationID: "o1",
		Name:          "auto-quality-check",
		Value:         0,
		Comment:       "Automatically flagged: Output contains validation errors.",
	})
	if err != nil {
		t.Fatalf("WriteScore() error = %v", err)
	}

	want := map[string]any{
		"id":            "s1",
		"traceId":       "t1",
		"observationId": "o1",
		"name":          "auto-quality-check",
		"value":         float64(0),
		"dataType":      "NUMERIC",
		"comment":       "Automatically flagged: Output contains validation errors.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_TraceScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/traces/t1":
			_, _ = fmt.Fprint(w, traceOneJSON)
		case "/api/public/traces/t2":
			_, _ = fmt.Fprint(w, traceTwoJSON)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	if scores, err := c.TraceScores(context.Background(), "t1"); err != nil || len(scores) != 0 {
		t.Errorf("t1: expected no scores, got %+v (err %v)", scores, err)
	}
	scores, err := c.TraceScores(context.Background(), "t2")
	if err != nil {
		t.Fatalf("t2: TraceScores() error = %v", err)
	}
	want := []model.Score{{ID: "s1", TraceID: "t2", Name: "manual", Value: 1, Comment: "ok"}}
	if diff := cmp.Diff(want, scores); diff != "" {
		t.Errorf("t2 scores mismatch (-want +got):\n%s", diff)
	}
}

func TestNewClient_InvalidHost(t *testing.T) {
	for _, host := range []string{"", "localhost:3000", "://bad"} {
		if _, err := NewClient(model.TraceStoreConfig{Host: host}, nil); err == nil {
			t.Errorf("expected error for host %q", host)
		}
	}
}

func TestFlattenOutput(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`null`, ""},
		{`"Valid: true"`, "Valid: true"},
		{`"line\nValid: false"`, "line\nValid: false"},
		{`{"a": 1}`, `{"a": 1}`},
		{`42`, "42"},
	}

	for _, tt := range tests {
		if got := flattenOutput(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("flattenOutput(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{Code: 503}, true},
		{"500", &StatusError{Code: 500}, true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"401", &StatusError{Code: 401}, false},
		{"wrapped 502", fmt.Errorf("list: %w", &StatusError{Code: 502}), true},
		{"unexpected EOF", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{"decode", errors.New("decode response: invalid character"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.retryable {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"Grüße", 3, "Gr..."},
		{"Grüße", 4, "Grü..."},
		{"日本", 2, "..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) split a rune: %q", tt.in, tt.n, got)
		}
	}
}
