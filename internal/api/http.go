package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/logging"
)

const (
	headerClientVersion    = "X-Client-Version"
	headerMinClientVersion = "X-Min-Client-Version"
	headerIdempotencyKey   = "Idempotency-Key"

	maxResponseBytes = 10 << 20
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL       string
	Token         string
	ClientVersion string
	Timeout       time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient talks to the backend's JSON API.
type HTTPClient struct {
	baseURL       string
	token         string
	clientVersion string
	http          *http.Client
	logger        *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(opts Options) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPClient{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		token:         opts.Token,
		clientVersion: opts.ClientVersion,
		http:          hc,
		logger:        logger.With("component", "api"),
	}
}

// envelope is the backend's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *HTTPClient) Categories(ctx context.Context, typ assessment.Type) ([]assessment.Category, error) {
	q := url.Values{}
	if typ != "" {
		q.Set("type", string(typ))
	}
	var out []assessment.Category
	if err := c.getJSON(ctx, "list categories", "/categories", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Assessments(ctx context.Context, categoryID string, typ assessment.Type) ([]assessment.Assessment, error) {
	q := url.Values{}
	if categoryID != "" {
		q.Set("category_id", categoryID)
	}
	if typ != "" {
		q.Set("type", string(typ))
	}
	var out []assessment.Assessment
	if err := c.getJSON(ctx, "list assessments", "/assessments", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AssessmentQuestions(ctx context.Context, assessmentID string) ([]assessment.Question, error) {
	const op = "load questions"
	data, err := c.do(ctx, op, http.MethodGet, "/assessments/"+url.PathEscape(assessmentID)+"/questions", nil, nil)
	if err != nil {
		return nil, err
	}
	return DecodeQuestions(op, data)
}

func (c *HTTPClient) SubmitAssessment(ctx context.Context, assessmentID string, req assessment.SubmitRequest) (*assessment.Result, error) {
	const op = "submit assessment"
	data, err := c.do(ctx, op, http.MethodPost, "/assessments/"+url.PathEscape(assessmentID)+"/submit", nil, req)
	if err != nil {
		return nil, err
	}
	var res assessment.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, &PayloadError{Op: op, Err: err}
	}
	return &res, nil
}

func (c *HTTPClient) AssessmentResults(ctx context.Context, assessmentID string) ([]assessment.HistoryEntry, error) {
	q := url.Values{}
	if assessmentID != "" {
		q.Set("assessment_id", assessmentID)
	}
	var out []assessment.HistoryEntry
	if err := c.getJSON(ctx, "list results", "/results", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Leaderboard(ctx context.Context, typ assessment.Type, assessmentID string) ([]assessment.LeaderboardEntry, error) {
	q := url.Values{}
	if typ != "" {
		q.Set("type", string(typ))
	}
	if assessmentID != "" {
		q.Set("assessment_id", assessmentID)
	}
	var out []assessment.LeaderboardEntry
	if err := c.getJSON(ctx, "get leaderboard", "/leaderboard", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, op, path string, query url.Values, dest any) error {
	data, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &PayloadError{Op: op, Err: err}
	}
	return nil
}

// do performs one request and returns the envelope's data field.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.clientVersion != "" {
		req.Header.Set(headerClientVersion, c.clientVersion)
	}
	if key := IdempotencyKeyFrom(ctx); key != "" {
		req.Header.Set(headerIdempotencyKey, key)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "api request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	if err := c.checkClientVersion(op, resp.Header.Get(headerMinClientVersion)); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var env envelope
	envErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(op, resp.StatusCode, env.Message)
	}
	if envErr != nil {
		return nil, &PayloadError{Op: op, Err: envErr}
	}
	if !env.Success {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}

// checkClientVersion rejects the response when the server advertises a
// minimum version newer than ours. Non-semver versions are not compared.
func (c *HTTPClient) checkClientVersion(op, minVersion string) error {
	if minVersion == "" || c.clientVersion == "" {
		return nil
	}
	have, want := canonicalVersion(c.clientVersion), canonicalVersion(minVersion)
	if !semver.IsValid(have) || !semver.IsValid(want) {
		return nil
	}
	if semver.Compare(have, want) < 0 {
		return fmt.Errorf("%s: %w (have %s, need %s)", op, ErrClientOutdated, have, want)
	}
	return nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsRetryable reports whether err is a transient failure worth retrying.
// A client timeout is a network failure even though it also matches
// context.DeadlineExceeded; the caller's own context is checked separately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
