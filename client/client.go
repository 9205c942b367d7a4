// Package client talks to the review backend's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/errors"
	"haven/internal/logging"
	"haven/shared/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	backoff    time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBackoff sets the first retry delay; it doubles on every attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		logger:  zap.NewNop(),
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the backend root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Commit operations

func (c *Client) GetCommit(ctx context.Context, id int) (*shared.CommitInfo, error) {
	var out shared.CommitInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/commits/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCommitByHash(ctx context.Context, hash string, repositoryID int) (*shared.CommitInfo, error) {
	q := url.Values{}
	if repositoryID > 0 {
		q.Set("repository_id", strconv.Itoa(repositoryID))
	}
	var out shared.CommitInfo
	if err := c.do(ctx, http.MethodGet, "/commits/by-hash/"+url.PathEscape(hash), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCommits fetches one page of commits. With q.WithReviews set the
// items carry their latest review status.
func (c *Client) ListCommits(ctx context.Context, q shared.CommitQuery) (*shared.Page[shared.CommitWithReview], error) {
	path := "/commits/paginated"
	if q.WithReviews {
		path = "/commits/paginated-with-reviews"
	}
	var out shared.Page[shared.CommitWithReview]
	if err := c.do(ctx, http.MethodGet, path, commitQuery(q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func commitQuery(q shared.CommitQuery) url.Values {
	v := url.Values{}
	if q.RepositoryID > 0 {
		v.Set("repository_id", strconv.Itoa(q.RepositoryID))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", q.Search)
	set("author", q.Author)
	set("date_from", q.DateFrom)
	set("date_to", q.DateTo)
	set("status", q.Status)
	set("branch", q.Branch)
	return v
}

// Review operations

func (c *Client) ListReviews(ctx context.Context, commitID int) ([]shared.CommitReview, error) {
	var out []shared.CommitReview
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/commits/%d/reviews", commitID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateReview(ctx context.Context, commitID int, req shared.ReviewRequest) (*shared.CommitReview, error) {
	var out shared.CommitReview
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/commits/%d/reviews", commitID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Diff operations

func (c *Client) GetDiffJSON(ctx context.Context, commitID int) (*diff.Document, error) {
	var out diff.Document
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/commits/%d/diff-json", commitID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDiffHTML(ctx context.Context, commitID int) (string, error) {
	body, err := c.raw(ctx, http.MethodGet, fmt.Sprintf("/commits/%d/diff-html", commitID), nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

type callOptions struct {
	retries int
}

type CallOption func(*callOptions)

// WithRetry retries a failed call up to n more times with exponential
// backoff. Only transport failures and 5xx answers are retried.
func WithRetry(n int) CallOption {
	return func(o *callOptions) { o.retries = n }
}

// GenerateDiff asks the backend to (re)generate the stored diff. The call
// is idempotent, so it alone accepts WithRetry.
func (c *Client) GenerateDiff(ctx context.Context, commitID int, opts ...CallOption) (*shared.DiffGenerated, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	var out shared.DiffGenerated
	err := c.retryWithBackoff(ctx, o.retries, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/commits/%d/generate-diff", commitID), nil, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Comment operations

func (c *Client) ListComments(ctx context.Context, commitID int) ([]comment.ReviewComment, error) {
	var out []comment.ReviewComment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/commits/%d/comments", commitID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, commitID int, d comment.Draft) (*comment.ReviewComment, error) {
	var out comment.ReviewComment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/commits/%d/comments", commitID), nil, d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Repository operations

func (c *Client) ListRepositories(ctx context.Context) ([]shared.Repository, error) {
	var out []shared.Repository
	if err := c.do(ctx, http.MethodGet, "/repositories/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRepository(ctx context.Context, hash string) (*shared.Repository, error) {
	var out shared.Repository
	if err := c.do(ctx, http.MethodGet, "/repositories/"+url.PathEscape(hash), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBranches(ctx context.Context, identifier string) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/repositories/"+url.PathEscape(identifier)+"/branches", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RepositoryStats(ctx context.Context, identifier string) (*shared.RepositoryStats, error) {
	var out shared.RepositoryStats
	if err := c.do(ctx, http.MethodGet, "/repository-management/"+url.PathEscape(identifier)+"/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoadCommits(ctx context.Context, identifier string, req shared.LoadCommitsRequest) (*shared.LoadCommitsResult, error) {
	var out shared.LoadCommitsResult
	if err := c.do(ctx, http.MethodPost, "/repository-management/"+url.PathEscape(identifier)+"/load-commits", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Record operations

// ListRecords fetches one offset page of records. A zero limit leaves
// the page size to the backend.
func (c *Client) ListRecords(ctx context.Context, limit, offset int) (*shared.RecordList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out shared.RecordList
	if err := c.do(ctx, http.MethodGet, "/records", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRecord(ctx context.Context, id uuid.UUID) (*shared.Record, error) {
	var out shared.Record
	if err := c.do(ctx, http.MethodGet, "/records/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRecord(ctx context.Context, data map[string]any) (*shared.Record, error) {
	var out shared.Record
	if err := c.do(ctx, http.MethodPost, "/records", nil, shared.RecordData{Data: data}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRecord replaces the record's data.
func (c *Client) UpdateRecord(ctx context.Context, id uuid.UUID, data map[string]any) (*shared.Record, error) {
	return c.writeRecord(ctx, http.MethodPut, id, data)
}

// PatchRecord merges data into the record's data.
func (c *Client) PatchRecord(ctx context.Context, id uuid.UUID, data map[string]any) (*shared.Record, error) {
	return c.writeRecord(ctx, http.MethodPatch, id, data)
}

func (c *Client) writeRecord(ctx context.Context, method string, id uuid.UUID, data map[string]any) (*shared.Record, error) {
	var out shared.Record
	if err := c.do(ctx, method, "/records/"+id.String(), nil, shared.RecordData{Data: data}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/records/"+id.String(), nil, nil, nil)
}

// Health reports whether the backend answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Upstream(0, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Upstream(resp.StatusCode, "")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	body, err := c.raw(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	requestID, ok := logging.RequestID(ctx)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, errors.Upstream(0, err.Error()))
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.NotFound(fmt.Sprintf("%s not found", path))
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, errors.Upstream(resp.StatusCode, string(snippet)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", method, path, errors.Upstream(resp.StatusCode, err.Error()))
	}
	return data, nil
}

func (c *Client) retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Transient(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := backoffDelay(c.backoff, attempt)
			c.logger.Info("retrying backend call",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

// maxBackoff caps the delay between retries.
const maxBackoff = 30 * time.Second

// backoffDelay doubles base per attempt, never exceeding maxBackoff.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

var _ comment.Backend = (*Client)(nil)
