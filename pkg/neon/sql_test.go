package neon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
)

// sqlFixture wires a control-plane stub that serves an endpoint list
// and a data-plane stub that records POSTs to /sql.
type sqlFixture struct {
	client    *Client
	dataHost  string
	postCount *atomic.Int32
	lastBody  *atomic.Value
	lastConn  *atomic.Value
}

func newSQLFixture(t *testing.T, endpointsJSON func(dataHost string) string, dataStatus int, dataBody string) *sqlFixture {
	t.Helper()

	f := &sqlFixture{
		postCount: &atomic.Int32{},
		lastBody:  &atomic.Value{},
		lastConn:  &atomic.Value{},
	}

	dataServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sql", r.URL.Path)
		f.postCount.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(body))
		f.lastConn.Store(r.Header.Get("Neon-Connection-String"))
		w.WriteHeader(dataStatus)
		_, _ = w.Write([]byte(dataBody))
	}))
	t.Cleanup(dataServer.Close)

	dataURL, err := url.Parse(dataServer.URL)
	require.NoError(t, err)
	f.dataHost = dataURL.Host

	controlServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/endpoints"), "unexpected control-plane call %s", r.URL.Path)
		_, _ = w.Write([]byte(endpointsJSON(f.dataHost)))
	}))
	t.Cleanup(controlServer.Close)

	f.client = newTestClient(t, controlServer.URL, WithDataPlaneScheme("http"))
	return f
}

func TestRunSQLPostsToMatchingEndpoint(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [
			{"id": "e1", "host": "unreachable.invalid", "branch_id": "br_y"},
			{"id": "e2", "host": "%s", "branch_id": "br_x"}
		]}`, host)
	}, http.StatusOK, `{"rows": [], "row_count": 0}`)

	raw, err := f.client.RunSQL(context.Background(), "p", "br_x", "d", "select 1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows": [], "row_count": 0}`, string(raw))

	assert.Equal(t, int32(1), f.postCount.Load(), "exactly one data-plane POST")
	assert.Equal(t, `{"query":"select 1","params":[]}`, f.lastBody.Load())
}

func TestRunSQLFirstMatchWins(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [
			{"id": "e1", "host": "%s", "branch_id": "br_x"},
			{"id": "e2", "host": "second-match.invalid", "branch_id": "br_x"}
		]}`, host)
	}, http.StatusOK, `{"rows": []}`)

	_, err := f.client.RunSQL(context.Background(), "p", "br_x", "d", "select 1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.postCount.Load())
}

func TestRunSQLNoEndpointForBranch(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [{"id": "e1", "host": "%s", "branch_id": "br_other"}]}`, host)
	}, http.StatusOK, `{}`)

	_, err := f.client.RunSQL(context.Background(), "p", "br_x", "d", "select 1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "no endpoint for branch br_x")
	assert.Equal(t, int32(0), f.postCount.Load(), "no data-plane POST on NotFound")
}

func TestRunSQLConnectionStringHeader(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [{"id": "e1", "host": "%s", "branch_id": "br_x"}]}`, host)
	}, http.StatusOK, `{}`)

	_, err := f.client.RunSQL(context.Background(), "p", "br_x", "mydb", "select 1")
	require.NoError(t, err)

	want := fmt.Sprintf("postgres://neondb_owner:test-key@%s/mydb", f.dataHost)
	assert.Equal(t, want, f.lastConn.Load())
}

func TestDataPlaneConnStringEscapesKey(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")
	client.apiKey = "key with spaces@and:stuff"

	got := client.dataPlaneConnString("ep-1.aws.neon.tech", "neondb")
	assert.NotContains(t, got, "key with spaces@and:stuff")

	parsed, err := url.Parse(got)
	require.NoError(t, err)
	pw, _ := parsed.User.Password()
	assert.Equal(t, "key with spaces@and:stuff", pw)
	assert.Equal(t, "neondb_owner", parsed.User.Username())
	assert.Equal(t, "ep-1.aws.neon.tech", parsed.Host)
	assert.Equal(t, "/neondb", parsed.Path)
}

func TestRunSQLRemoteError(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [{"id": "e1", "host": "%s", "branch_id": "br_x"}]}`, host)
	}, http.StatusBadRequest, `{"message": "syntax error at or near \"selec\""}`)

	_, err := f.client.RunSQL(context.Background(), "p", "br_x", "d", "selec 1")
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindRemote, appErr.Kind)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Body, "syntax error")
}

func TestRunSQLInvalidJSONResponse(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [{"id": "e1", "host": "%s", "branch_id": "br_x"}]}`, host)
	}, http.StatusOK, `<html>not json</html>`)

	_, err := f.client.RunSQL(context.Background(), "p", "br_x", "d", "select 1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDecode, apperrors.KindOf(err))
}

func TestRunSQLEndpointDiscoveryFailure(t *testing.T) {
	controlServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code": "forbidden"}`))
	}))
	defer controlServer.Close()

	client := newTestClient(t, controlServer.URL, WithDataPlaneScheme("http"))
	_, err := client.RunSQL(context.Background(), "p", "br_x", "d", "select 1")
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindRemote, appErr.Kind)
	assert.Equal(t, 403, appErr.Status)
}

func TestGetTablesUsesCatalogQuery(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [{"id": "e1", "host": "%s", "branch_id": "br_x"}]}`, host)
	}, http.StatusOK, `{"rows": []}`)

	_, err := f.client.GetTables(context.Background(), "p", "br_x", "neondb")
	require.NoError(t, err)

	body := f.lastBody.Load().(string)
	assert.Contains(t, body, "pg_catalog.pg_tables")
	assert.Contains(t, body, "schemaname NOT IN ('pg_catalog', 'information_schema')")
	assert.Contains(t, body, "ORDER BY schemaname, tablename")
}

func TestGetTableSchemaEscapesTableName(t *testing.T) {
	f := newSQLFixture(t, func(host string) string {
		return fmt.Sprintf(`{"endpoints": [{"id": "e1", "host": "%s", "branch_id": "br_x"}]}`, host)
	}, http.StatusOK, `{"rows": []}`)

	_, err := f.client.GetTableSchema(context.Background(), "p", "br_x", "neondb", "O'Brien")
	require.NoError(t, err)

	body := f.lastBody.Load().(string)
	assert.Contains(t, body, `table_name = 'O''Brien'`)
	assert.NotContains(t, body, `= 'O'Brien'`)
}
