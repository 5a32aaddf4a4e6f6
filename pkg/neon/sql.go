package neon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
	"github.com/fgp-dev/fgp-neon/pkg/audit"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
	"github.com/fgp-dev/fgp-neon/pkg/models"
	"github.com/fgp-dev/fgp-neon/pkg/sqlutil"
)

// tablesQuery lists user tables, excluding system schemas.
const tablesQuery = "SELECT schemaname as schema, tablename as name FROM pg_catalog.pg_tables WHERE schemaname NOT IN ('pg_catalog', 'information_schema') ORDER BY schemaname, tablename"

// columnsQueryFmt describes one table's columns. The table name is
// interpolated as a SQL literal after quote doubling.
const columnsQueryFmt = "SELECT column_name, data_type, is_nullable::boolean, column_default FROM information_schema.columns WHERE table_name = '%s' ORDER BY ordinal_position"

// sqlRequest is the data-plane request body. Params is always present
// so the body reads {"query": ..., "params": []}.
type sqlRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// GetTables lists the user tables of a database via the catalog.
func (c *Client) GetTables(ctx context.Context, projectID, branchID, database string) (json.RawMessage, error) {
	return c.RunSQL(ctx, projectID, branchID, database, tablesQuery)
}

// GetTableSchema describes the columns of one table. The table name is
// escaped for literal interpolation; values that look like injection
// attempts are recorded and sent anyway, since the caller owns the
// query surface here just as with RunSQL.
func (c *Client) GetTableSchema(ctx context.Context, projectID, branchID, database, table string) (json.RawMessage, error) {
	if isSQLi, fingerprint := sqlutil.CheckLiteral(table); isSQLi {
		c.audit.InjectionAttempt(audit.InjectionDetails{
			Param:       "table",
			Value:       logging.TruncateQuery(table),
			Fingerprint: fingerprint,
			ProjectID:   projectID,
			BranchID:    branchID,
		})
	}
	query := fmt.Sprintf(columnsQueryFmt, sqlutil.QuoteLiteral(table))
	return c.RunSQL(ctx, projectID, branchID, database, query)
}

// RunSQL executes a query on a branch. It first resolves the branch to
// a compute endpoint via the control plane, then POSTs the query to
// that endpoint's data plane. The 2xx response body is returned
// verbatim.
func (c *Client) RunSQL(ctx context.Context, projectID, branchID, database, query string) (json.RawMessage, error) {
	endpoint, err := c.resolveEndpoint(ctx, projectID, branchID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sqlRequest{Query: query, Params: []any{}})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	sqlURL := fmt.Sprintf("%s://%s/sql", c.dataPlaneScheme, endpoint.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.Header.Set("Neon-Connection-String", c.dataPlaneConnString(endpoint.Host, database))
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("executing SQL",
		zap.String("endpoint_host", endpoint.Host),
		zap.String("database", database),
		zap.String("query", logging.TruncateQuery(query)))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := apperrors.ClassifyTransport(err)
		c.logger.Warn("SQL execution failed",
			zap.String("endpoint_host", endpoint.Host),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, classified
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Decode("failed to read SQL response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("SQL execution rejected",
			zap.String("endpoint_host", endpoint.Host),
			zap.Int("status", resp.StatusCode))
		return nil, apperrors.Remote(resp.StatusCode, string(body))
	}
	if !json.Valid(body) {
		return nil, apperrors.Decode("SQL response is not valid JSON", nil)
	}

	c.logger.Debug("SQL executed",
		zap.String("endpoint_host", endpoint.Host),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return json.RawMessage(body), nil
}

// resolveEndpoint finds the compute endpoint serving a branch. The
// first match in server-returned order wins.
func (c *Client) resolveEndpoint(ctx context.Context, projectID, branchID string) (*models.ComputeEndpoint, error) {
	listPath := fmt.Sprintf("/projects/%s/endpoints", url.PathEscape(projectID))

	var env struct {
		Endpoints []models.ComputeEndpoint `json:"endpoints"`
	}
	if err := c.get(ctx, listPath, &env); err != nil {
		return nil, err
	}

	for i := range env.Endpoints {
		if env.Endpoints[i].BranchID == branchID {
			return &env.Endpoints[i], nil
		}
	}
	return nil, apperrors.NotFoundf("no endpoint for branch %s", branchID)
}

// dataPlaneConnString builds the Neon-Connection-String header value.
// The API key rides as the password, URL-escaped. Never log this.
func (c *Client) dataPlaneConnString(host, database string) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dataPlaneRole, c.apiKey),
		Host:   host,
		Path:   "/" + database,
	}
	return u.String()
}
