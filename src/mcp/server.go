package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/store"
)

// Engine runs syncs on demand. *pipeline.Pipeline satisfies it.
type Engine interface {
	Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error)
	CheckAndSync(ctx context.Context, build *contracts.Build) bool
}

// Server is the MCP server for cisync.
type Server struct {
	mcpServer *server.MCPServer
	engine    Engine
	store     store.Store
	logger    logger.Logger
}

// NewServer creates a new MCP server backed by the engine and its store.
func NewServer(engine Engine, st store.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	s := server.NewMCPServer(
		"cisync",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		engine:    engine,
		store:     st,
		logger:    log,
	}
	srv.registerTools()

	return srv
}

func buildParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("build_id",
			mcp.Required(),
			mcp.Description("Build identifier from the cisync configuration"),
		),
		mcp.WithString("tenant_id",
			mcp.Required(),
			mcp.Description("Tenant owning the build"),
		),
	}
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	syncTool := mcp.NewTool("sync_build", append(buildParams(),
		mcp.WithDescription("Synchronize a build's CI history now: fetch new workflow runs matching its selectors, persist them, and parse test reports for the newest completed runs."),
	)...)

	checkTool := mcp.NewTool("check_build", append(buildParams(),
		mcp.WithDescription("Sync a build only if its repository has a new commit since the last analysis. Returns whether a sync ran."),
	)...)

	statusTool := mcp.NewTool("get_sync_status", append(buildParams(),
		mcp.WithDescription("Get a build's sync bookkeeping and its most recent persisted runs."),
		mcp.WithNumber("runs",
			mcp.Description("Number of recent runs to include (default: 10)"),
		),
	)...)

	reportTool := mcp.NewTool("get_test_report", append(buildParams(),
		mcp.WithDescription("Get the tiered test failures of a run. Tier 1 lists failures that were not failing in the previous report, with compacted stack traces; these are the likely regressions. Tier 2 summarizes failures that persist from the previous report; use get_test_failure to drill into them."),
		mcp.WithNumber("run_id",
			mcp.Description("Provider run ID (default: newest run with a report)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max tier 1 failures (default: 15)"),
		),
	)...)

	failureTool := mcp.NewTool("get_test_failure", append(buildParams(),
		mcp.WithDescription("Get the full stack trace of one failed test. Use after get_test_report to drill into a failure."),
		mcp.WithNumber("run_id",
			mcp.Required(),
			mcp.Description("Provider run ID from the get_test_report response"),
		),
		mcp.WithString("failure_id",
			mcp.Required(),
			mcp.Description("Failure ID from the get_test_report response"),
		),
	)...)

	parseTool := mcp.NewTool("parse_test_report",
		mcp.WithDescription("Parse a local JUnit XML file or zipped test artifact and return its tiered failures."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to a .xml or .zip file"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max tier 1 failures (default: 15)"),
		),
	)

	s.mcpServer.AddTool(syncTool, s.handleSyncBuild)
	s.mcpServer.AddTool(checkTool, s.handleCheckBuild)
	s.mcpServer.AddTool(statusTool, s.handleGetSyncStatus)
	s.mcpServer.AddTool(reportTool, s.handleGetTestReport)
	s.mcpServer.AddTool(failureTool, s.handleGetTestFailure)
	s.mcpServer.AddTool(parseTool, s.handleParseTestReport)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
