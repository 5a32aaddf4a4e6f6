// Package service implements the Neon daemon service: a method
// registry that validates parameters, dispatches onto the API client
// and describes itself for introspection and the MCP bridge.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
	"github.com/fgp-dev/fgp-neon/pkg/fgp"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
	"github.com/fgp-dev/fgp-neon/pkg/neon"
)

const defaultDatabase = "neondb"

type handlerFunc func(ctx context.Context, params map[string]any) (any, error)

// methodSpec is one row of the registry. The alias is dispatched but
// never advertised through Methods.
type methodSpec struct {
	name        string
	alias       string
	description string
	params      []fgp.ParamInfo
	handler     handlerFunc
}

// NeonService exposes Neon control-plane operations over the daemon
// protocol. It implements fgp.Service.
type NeonService struct {
	client  *neon.Client
	version string
	logger  *zap.Logger

	table  []methodSpec
	byName map[string]*methodSpec
}

// New builds the service around an API client.
func New(client *neon.Client, version string, logger *zap.Logger) *NeonService {
	s := &NeonService{
		client:  client,
		version: version,
		logger:  logger.Named("service"),
	}
	s.table = s.methodTable()
	s.byName = make(map[string]*methodSpec, 2*len(s.table))
	for i := range s.table {
		m := &s.table[i]
		s.byName[m.name] = m
		if m.alias != "" {
			s.byName[m.alias] = m
		}
	}
	return s
}

func requiredString(name string) fgp.ParamInfo {
	return fgp.ParamInfo{Name: name, Type: "string", Required: true}
}

func optionalString(name string, def any) fgp.ParamInfo {
	return fgp.ParamInfo{Name: name, Type: "string", Default: def}
}

func (s *NeonService) methodTable() []methodSpec {
	return []methodSpec{
		{
			name:        "health",
			description: "Check service and Neon API health",
			handler:     s.health,
		},
		{
			name:        "neon.projects",
			alias:       "projects",
			description: "List all Neon projects",
			params: []fgp.ParamInfo{
				{Name: "limit", Type: "integer", Default: 10},
			},
			handler: s.listProjects,
		},
		{
			name:        "neon.project",
			alias:       "project",
			description: "Get a specific project",
			params:      []fgp.ParamInfo{requiredString("project_id")},
			handler:     s.getProject,
		},
		{
			name:        "neon.branches",
			alias:       "branches",
			description: "List branches for a project",
			params:      []fgp.ParamInfo{requiredString("project_id")},
			handler:     s.listBranches,
		},
		{
			name:        "neon.databases",
			alias:       "databases",
			description: "List databases for a branch",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				requiredString("branch_id"),
			},
			handler: s.listDatabases,
		},
		{
			name:        "neon.tables",
			alias:       "tables",
			description: "List tables in a database",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				requiredString("branch_id"),
				optionalString("database", defaultDatabase),
			},
			handler: s.getTables,
		},
		{
			name:        "neon.schema",
			alias:       "schema",
			description: "Get table schema",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				requiredString("branch_id"),
				optionalString("database", defaultDatabase),
				requiredString("table"),
			},
			handler: s.getTableSchema,
		},
		{
			name:        "neon.sql",
			alias:       "sql",
			description: "Run a SQL query",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				requiredString("branch_id"),
				optionalString("database", defaultDatabase),
				requiredString("query"),
			},
			handler: s.runSQL,
		},
		{
			name:        "neon.user",
			alias:       "user",
			description: "Get current user info",
			handler:     s.getUser,
		},
		{
			name:        "neon.create_branch",
			alias:       "create_branch",
			description: "Create a new branch",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				optionalString("name", nil),
				optionalString("parent_id", nil),
			},
			handler: s.createBranch,
		},
		{
			name:        "neon.delete_branch",
			alias:       "delete_branch",
			description: "Delete a branch",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				requiredString("branch_id"),
			},
			handler: s.deleteBranch,
		},
		{
			name:        "neon.connection_string",
			alias:       "connection_string",
			description: "Get connection string for a branch",
			params: []fgp.ParamInfo{
				requiredString("project_id"),
				optionalString("branch_id", nil),
				optionalString("database", defaultDatabase),
				{Name: "pooled", Type: "boolean", Default: false},
			},
			handler: s.connectionString,
		},
	}
}

// Name implements fgp.Service.
func (s *NeonService) Name() string { return "neon" }

// Version implements fgp.Service.
func (s *NeonService) Version() string { return s.version }

// Dispatch routes a method call to its handler.
func (s *NeonService) Dispatch(ctx context.Context, method string, params map[string]any) (any, error) {
	m, ok := s.byName[method]
	if !ok {
		return nil, apperrors.UnknownMethod(method)
	}
	return m.handler(ctx, params)
}

// Methods lists the canonical methods for introspection.
func (s *NeonService) Methods() []fgp.MethodInfo {
	out := make([]fgp.MethodInfo, 0, len(s.table))
	for _, m := range s.table {
		out = append(out, fgp.MethodInfo{
			Name:        m.name,
			Description: m.description,
			Params:      m.params,
		})
	}
	return out
}

// OnStart verifies the API connection once. A transport failure aborts
// startup; an unsuccessful API response is only a warning since the
// remote may be temporarily degraded.
func (s *NeonService) OnStart(ctx context.Context) error {
	s.logger.Info("verifying Neon API connection")
	ok, err := s.client.Ping(ctx)
	if err != nil {
		s.logger.Error("Neon API connection failed",
			zap.String("error", logging.SanitizeError(err)))
		return err
	}
	if !ok {
		s.logger.Warn("Neon API returned an unsuccessful response")
		return nil
	}
	s.logger.Info("Neon API connection verified")
	return nil
}

// HealthCheck probes the Neon API and reports latency.
func (s *NeonService) HealthCheck(ctx context.Context) map[string]fgp.HealthStatus {
	start := time.Now()
	ok, err := s.client.Ping(ctx)
	latency := time.Since(start).Seconds() * 1000

	checks := make(map[string]fgp.HealthStatus, 1)
	switch {
	case err != nil:
		checks["neon_api"] = fgp.Unhealthy(logging.SanitizeError(err))
	case !ok:
		checks["neon_api"] = fgp.Unhealthy("API returned error")
	default:
		checks["neon_api"] = fgp.HealthyWithLatency(latency)
	}
	return checks
}

func (s *NeonService) health(ctx context.Context, _ map[string]any) (any, error) {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return nil, err
	}
	status := "healthy"
	if !ok {
		status = "unhealthy"
	}
	return map[string]any{
		"status":        status,
		"api_connected": ok,
		"version":       s.version,
	}, nil
}

func (s *NeonService) listProjects(ctx context.Context, p map[string]any) (any, error) {
	limit := optInt(p, "limit", 10)

	projects, err := s.client.ListProjects(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"projects": projects, "count": len(projects)}, nil
}

func (s *NeonService) getProject(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}

	project, err := s.client.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *NeonService) listBranches(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}

	branches, err := s.client.ListBranches(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"branches": branches, "count": len(branches)}, nil
}

func (s *NeonService) listDatabases(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	branchID, err := reqString(p, "branch_id")
	if err != nil {
		return nil, err
	}

	databases, err := s.client.ListDatabases(ctx, projectID, branchID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"databases": databases, "count": len(databases)}, nil
}

func (s *NeonService) getTables(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	branchID, err := reqString(p, "branch_id")
	if err != nil {
		return nil, err
	}
	database := optString(p, "database", defaultDatabase)

	return s.client.GetTables(ctx, projectID, branchID, database)
}

func (s *NeonService) getTableSchema(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	branchID, err := reqString(p, "branch_id")
	if err != nil {
		return nil, err
	}
	database := optString(p, "database", defaultDatabase)
	table, err := reqString(p, "table")
	if err != nil {
		return nil, err
	}

	return s.client.GetTableSchema(ctx, projectID, branchID, database, table)
}

func (s *NeonService) runSQL(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	branchID, err := reqString(p, "branch_id")
	if err != nil {
		return nil, err
	}
	database := optString(p, "database", defaultDatabase)
	query, err := reqString(p, "query")
	if err != nil {
		return nil, err
	}

	return s.client.RunSQL(ctx, projectID, branchID, database, query)
}

func (s *NeonService) getUser(ctx context.Context, _ map[string]any) (any, error) {
	return s.client.GetUser(ctx)
}

func (s *NeonService) createBranch(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	name := optString(p, "name", "")
	parentID := optString(p, "parent_id", "")

	branch, err := s.client.CreateBranch(ctx, projectID, name, parentID)
	if err != nil {
		return nil, err
	}
	return branch, nil
}

func (s *NeonService) deleteBranch(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	branchID, err := reqString(p, "branch_id")
	if err != nil {
		return nil, err
	}

	if err := s.client.DeleteBranch(ctx, projectID, branchID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true}, nil
}

func (s *NeonService) connectionString(ctx context.Context, p map[string]any) (any, error) {
	projectID, err := reqString(p, "project_id")
	if err != nil {
		return nil, err
	}
	branchID := optString(p, "branch_id", "")
	database := optString(p, "database", defaultDatabase)
	pooled := optBool(p, "pooled", false)

	return s.client.ConnectionString(ctx, projectID, branchID, database, pooled)
}
