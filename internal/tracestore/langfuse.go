package tracestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"

	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/util"
	"github.com/ppiankov/truckeval/internal/worker"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
	maxResponseBytes  = 16 << 20

	tracesPath = "/api/public/traces"
	scoresPath = "/api/public/scores"
)

// storeSleepFunc is the sleep function used between retries (injectable for tests)
var storeSleepFunc = time.Sleep

// errDecode marks a response body that did not match the expected shape
var errDecode = errors.New("decode response")

// Client talks to a Langfuse-compatible public API
type Client struct {
	// ScoreName is the name the auto-scorer writes under. Traces listed with
	// scores are fetched in full only when every score could be one of its
	// own records; others are returned without fetching.
	ScoreName string

	baseURL    string
	publicKey  string
	secretKey  string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	limiter    *worker.Limiter
}

// NewClient creates a trace store client. A nil limiter disables rate
// limiting.
func NewClient(cfg model.TraceStoreConfig, limiter *worker.Limiter) (*Client, error) {
	base := strings.TrimRight(cfg.Host, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid trace store host %q", cfg.Host)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if limiter == nil {
		limiter = worker.NewLimiter(0, 1)
	}

	return &Client{
		baseURL:    base,
		publicKey:  cfg.PublicKey,
		secretKey:  cfg.SecretKey,
		userAgent:  cfg.UserAgent,
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		limiter: limiter,
	}, nil
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "unexpected status: " + e.Status
	}
	return fmt.Sprintf("unexpected status: %s: %s", e.Status, e.Body)
}

// Wire shapes of the public API

type traceListResponse struct {
	Data []traceListItem `json:"data"`
}

type traceListItem struct {
	ID           string   `json:"id"`
	Observations []string `json:"observations"`
	Scores       []string `json:"scores"`
}

type traceResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Timestamp    time.Time             `json:"timestamp"`
	Observations []observationResponse `json:"observations"`
	Scores       []scoreResponse       `json:"scores"`
}

type observationResponse struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Output json.RawMessage `json:"output"`
}

type scoreResponse struct {
	ID            string          `json:"id"`
	TraceID       string          `json:"traceId"`
	ObservationID string          `json:"observationId"`
	Name          string          `json:"name"`
	Value         json.RawMessage `json:"value"`
	Comment       string          `json:"comment"`
}

type scoreRequest struct {
	ID            string  `json:"id,omitempty"`
	TraceID       string  `json:"traceId"`
	ObservationID string  `json:"observationId,omitempty"`
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	DataType      string  `json:"dataType"`
	Comment       string  `json:"comment,omitempty"`
}

// ListTraces lists the most recent traces and fetches each one in full.
// The list endpoint only carries observation and score IDs. Traces that
// disappear between listing and fetching are skipped. A trace whose payload
// cannot be decoded is returned with only its ID, which marks it malformed.
func (c *Client) ListTraces(ctx context.Context, limit int) ([]model.Trace, error) {
	query := url.Values{}
	query.Set("page", "1")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var list traceListResponse
	if err := c.doWithRetry(ctx, http.MethodGet, tracesPath+"?"+query.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}

	traces := make([]model.Trace, 0, len(list.Data))
	for _, item := range list.Data {
		log := clog.FromContext(ctx).With("trace", item.ID)

		if len(item.Scores) > 0 && !c.ownScores(item) {
			log.Debug("Trace already scored, skipping detail fetch")
			traces = append(traces, item.scored())
			continue
		}

		trace, err := c.getTrace(ctx, item.ID)
		var status *StatusError
		switch {
		case errors.As(err, &status) && status.Code == http.StatusNotFound:
			log.Warn("Trace vanished before it could be fetched, skipping")
			continue
		case errors.Is(err, errDecode):
			log.With("error", err.Error()).Warn("Trace payload could not be decoded")
			traces = append(traces, model.Trace{ID: item.ID})
			continue
		case err != nil:
			return nil, fmt.Errorf("fetch trace %s: %w", item.ID, err)
		}
		traces = append(traces, trace)
	}

	return traces, nil
}

// WriteScore posts a numeric score. Langfuse upserts on the score ID.
func (c *Client) WriteScore(ctx context.Context, score model.Score) error {
	body, err := json.Marshal(scoreRequest{
		ID:            score.ID,
		TraceID:       score.TraceID,
		ObservationID: score.ObservationID,
		Name:          score.Name,
		Value:         score.Value,
		DataType:      "NUMERIC",
		Comment:       score.Comment,
	})
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}

	if err := c.doWithRetry(ctx, http.MethodPost, scoresPath, body, nil); err != nil {
		return fmt.Errorf("write score for trace %s: %w", score.TraceID, err)
	}
	return nil
}

// TraceScores fetches the trace and returns its current scores
func (c *Client) TraceScores(ctx context.Context, traceID string) ([]model.Score, error) {
	trace, err := c.getTrace(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("check scores for trace %s: %w", traceID, err)
	}
	return trace.Scores, nil
}

// ownScores reports whether every score listed on item could have been
// written under c.ScoreName for one of the listed observations
func (c *Client) ownScores(item traceListItem) bool {
	if c.ScoreName == "" {
		return false
	}
	own := make(map[string]bool, len(item.Observations))
	for i, obsID := range item.Observations {
		own[model.ScoreID(item.ID, c.ScoreName, obsID, i)] = true
	}
	for _, id := range item.Scores {
		if !own[id] {
			return false
		}
	}
	return true
}

// scored builds a trace that only carries its listed score IDs
func (item traceListItem) scored() model.Trace {
	t := model.Trace{ID: item.ID, Observations: []model.Observation{}}
	for _, id := range item.Scores {
		t.Scores = append(t.Scores, model.Score{ID: id, TraceID: item.ID})
	}
	return t
}

func (c *Client) getTrace(ctx context.Context, id string) (model.Trace, error) {
	var resp traceResponse
	if err := c.doWithRetry(ctx, http.MethodGet, tracesPath+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return model.Trace{}, err
	}
	return resp.toModel(), nil
}

func (r traceResponse) toModel() model.Trace {
	t := model.Trace{
		ID:        r.ID,
		Name:      r.Name,
		Timestamp: r.Timestamp,
	}

	// nil stays nil: a missing list marks the trace malformed
	if r.Observations != nil {
		t.Observations = make([]model.Observation, len(r.Observations))
		for i, o := range r.Observations {
			t.Observations[i] = model.Observation{
				ID:     o.ID,
				Type:   model.ObservationType(o.Type),
				Output: flattenOutput(o.Output),
			}
		}
	}

	for _, s := range r.Scores {
		t.Scores = append(t.Scores, model.Score{
			ID:            s.ID,
			TraceID:       s.TraceID,
			ObservationID: s.ObservationID,
			Name:          s.Name,
			Value:         numericValue(s.Value),
			Comment:       s.Comment,
		})
	}

	return t
}

// flattenOutput turns an observation output into text: strings are
// unquoted, null is empty, anything else keeps its JSON form
func flattenOutput(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// numericValue parses a score value, treating non-numeric values as 0
func numericValue(raw json.RawMessage) float64 {
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(raw)), 64)
	if err != nil {
		return 0
	}
	return v
}

// doWithRetry retries transient failures with exponential backoff
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, out any) error {
	var err error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		err = c.do(ctx, method, path, body, out)
		if ctx.Err() != nil || !isRetryable(err) {
			return err
		}
		if attempt < c.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			clog.FromContext(ctx).
				With("method", method).
				With("path", path).
				With("attempt", attempt+1).
				With("backoff", backoff).
				With("error", err.Error()).
				Warn("Trace store request failed, retrying")
			storeSleepFunc(backoff)
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	target := c.baseURL + path
	if err := c.limiter.Wait(ctx, target); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.publicKey != "" || c.secretKey != "" {
		req.SetBasicAuth(c.publicKey, c.secretKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   truncate(strings.TrimSpace(string(data)), 200),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	return nil
}

// isRetryable reports whether err is a transient failure: 5xx, 429,
// timeouts and refused or reset connections
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= 500 || status.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
