// Package neon is the HTTP adapter for the Neon control plane and the
// per-endpoint SQL data plane. One Client is constructed at startup
// and shared by every connection; the underlying http.Client keeps a
// warm pool per host.
package neon

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

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
	"github.com/fgp-dev/fgp-neon/pkg/audit"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
	"github.com/fgp-dev/fgp-neon/pkg/models"
)

// DefaultBaseURL is the Neon control-plane root.
const DefaultBaseURL = "https://console.neon.tech/api/v2"

// dataPlaneRole is the role the SQL-over-HTTP calls authenticate as.
const dataPlaneRole = "neondb_owner"

// Client talks to the Neon API on behalf of the daemon.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	orgID           string
	dataPlaneScheme string
	logger          *zap.Logger
	audit           *audit.Auditor
}

// Config holds constructor settings for the API client.
type Config struct {
	APIKey       string
	OrgID        string
	BaseURL      string        // Control-plane root; DefaultBaseURL if empty
	Timeout      time.Duration // Per-request deadline; 30s if zero
	MaxIdleConns int           // Idle pool size per host; 5 if zero
}

// Option customizes a Client beyond Config.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDataPlaneScheme overrides the scheme of data-plane SQL URLs so
// tests can point at plain-HTTP stubs.
func WithDataPlaneScheme(scheme string) Option {
	return func(c *Client) { c.dataPlaneScheme = scheme }
}

// NewClient creates a Neon API client.
func NewClient(cfg *Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.OrgID == "" {
		return nil, fmt.Errorf("org id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: maxIdle,
			},
		},
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		apiKey:          cfg.APIKey,
		orgID:           cfg.OrgID,
		dataPlaneScheme: "https",
		logger:          logger.Named("neon"),
		audit:           audit.New(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping reports whether the control plane answers under the configured
// credentials. A non-2xx answer is false, not an error; only transport
// failures and timeouts error.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("/projects?org_id=%s&limit=1", url.QueryEscape(c.orgID))

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, apperrors.ClassifyTransport(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// ListProjects lists projects in the configured org.
func (c *Client) ListProjects(ctx context.Context, limit int32) ([]models.Project, error) {
	endpoint := fmt.Sprintf("/projects?org_id=%s&limit=%d", url.QueryEscape(c.orgID), limit)

	var env struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.get(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	return env.Projects, nil
}

// GetProject fetches one project by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	endpoint := fmt.Sprintf("/projects/%s", url.PathEscape(projectID))

	var env struct {
		Project models.Project `json:"project"`
	}
	if err := c.get(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	return &env.Project, nil
}

// ListBranches lists the branches of a project.
func (c *Client) ListBranches(ctx context.Context, projectID string) ([]models.Branch, error) {
	endpoint := fmt.Sprintf("/projects/%s/branches", url.PathEscape(projectID))

	var env struct {
		Branches []models.Branch `json:"branches"`
	}
	if err := c.get(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	return env.Branches, nil
}

// ListDatabases lists the databases on a branch.
func (c *Client) ListDatabases(ctx context.Context, projectID, branchID string) ([]models.Database, error) {
	endpoint := fmt.Sprintf("/projects/%s/branches/%s/databases",
		url.PathEscape(projectID), url.PathEscape(branchID))

	var env struct {
		Databases []models.Database `json:"databases"`
	}
	if err := c.get(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	return env.Databases, nil
}

// GetUser fetches the account behind the API key, passed through
// verbatim.
func (c *Client) GetUser(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/users/me", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateBranch creates a branch in a project. Name and parent are
// optional; the API picks defaults for whatever is omitted.
func (c *Client) CreateBranch(ctx context.Context, projectID, name, parentID string) (*models.Branch, error) {
	endpoint := fmt.Sprintf("/projects/%s/branches", url.PathEscape(projectID))

	branch := map[string]any{}
	if name != "" {
		branch["name"] = name
	}
	if parentID != "" {
		branch["parent_id"] = parentID
	}
	body := map[string]any{"branch": branch}

	var env struct {
		Branch models.Branch `json:"branch"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, &env); err != nil {
		return nil, err
	}
	return &env.Branch, nil
}

// DeleteBranch deletes a branch. The API's response body is discarded;
// a 2xx status is the only signal the daemon needs.
func (c *Client) DeleteBranch(ctx context.Context, projectID, branchID string) error {
	endpoint := fmt.Sprintf("/projects/%s/branches/%s",
		url.PathEscape(projectID), url.PathEscape(branchID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// ConnectionString asks the control plane for a ready-to-use postgres
// URI. The response is passed through verbatim; the URI inside is
// parsed once for a redacted diagnostic log line.
func (c *Client) ConnectionString(ctx context.Context, projectID, branchID, database string, pooled bool) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("database_name", database)
	q.Set("role_name", dataPlaneRole)
	q.Set("pooled", strconv.FormatBool(pooled))
	if branchID != "" {
		q.Set("branch_id", branchID)
	}
	endpoint := fmt.Sprintf("/projects/%s/connection_uri?%s", url.PathEscape(projectID), q.Encode())

	var raw json.RawMessage
	if err := c.get(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	var parsed struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.URI != "" {
		if cfg, err := pgconn.ParseConfig(parsed.URI); err != nil {
			c.logger.Warn("connection URI failed to parse",
				zap.String("error", logging.SanitizeError(err)))
		} else {
			c.logger.Debug("issued connection URI",
				zap.String("host", cfg.Host),
				zap.String("database", cfg.Database))
		}
	}
	return raw, nil
}

// get issues an authenticated control-plane GET and decodes the
// response into out.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do issues an authenticated control-plane request. A non-nil body is
// JSON-encoded; a non-nil out receives the decoded response.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := apperrors.ClassifyTransport(err)
		c.logger.Warn("control-plane request failed",
			zap.String("method", method),
			zap.String("path", endpointPath(endpoint)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		c.logger.Warn("control-plane request rejected",
			zap.String("method", method),
			zap.String("path", endpointPath(endpoint)),
			zap.Int("status", resp.StatusCode))
		return apperrors.Remote(resp.StatusCode, string(text))
	}

	c.logger.Debug("control-plane request",
		zap.String("method", method),
		zap.String("path", endpointPath(endpoint)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Decode("failed to parse Neon API response", err)
	}
	return nil
}

// newRequest builds a control-plane request with auth headers set.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// endpointPath strips the query string so org ids and other
// credentials never reach a log line.
func endpointPath(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
