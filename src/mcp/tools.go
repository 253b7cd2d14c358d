package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"cisync/src/contracts"
	"cisync/src/junit"
	"cisync/src/store"
)

// reportScanLimit bounds how far back report lookups walk a build's runs.
const reportScanLimit = 50

const defaultStatusRuns = 10

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// loadBuild resolves the build named by the request's build_id and tenant_id.
func (s *Server) loadBuild(ctx context.Context, request mcp.CallToolRequest) (*contracts.Build, *mcp.CallToolResult) {
	buildID := request.GetString("build_id", "")
	tenantID := request.GetString("tenant_id", "")
	if buildID == "" || tenantID == "" {
		return nil, mcp.NewToolResultError("build_id and tenant_id parameters are required")
	}

	build, err := s.store.GetBuild(ctx, buildID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, mcp.NewToolResultError(fmt.Sprintf("build not found: %s (tenant %s)", buildID, tenantID))
	}
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("failed to load build: %v", err))
	}
	return build, nil
}

func (s *Server) handleSyncBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	build, errResult := s.loadBuild(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	result, err := s.engine.Sync(ctx, build)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleCheckBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	build, errResult := s.loadBuild(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	synced := s.engine.CheckAndSync(ctx, build)
	return jsonResult(map[string]bool{"synced": synced})
}

func (s *Server) handleGetSyncStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	build, errResult := s.loadBuild(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	limit := request.GetInt("runs", defaultStatusRuns)

	status, err := s.store.FindSyncStatus(ctx, build.ID, build.TenantID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load sync status: %v", err)), nil
	}
	runs, err := s.store.ListRuns(ctx, build.ID, build.TenantID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	resp := StatusResponse{
		BuildID:    build.ID,
		TenantID:   build.TenantID,
		RecentRuns: make([]RunInfo, 0, len(runs)),
	}
	if build.LastAnalyzedCommitSHA != nil {
		resp.LastAnalyzedCommit = *build.LastAnalyzedCommitSHA
	}
	if status != nil {
		resp.LastSyncedAt = status.LastSyncedAt
		resp.TotalRunsSynced = status.TotalRunsSynced
		resp.InitialBackfillCompleted = status.InitialBackfillCompleted
		if status.LastSyncError != nil {
			resp.LastSyncError = *status.LastSyncError
		}
	}
	for i := range runs {
		resp.RecentRuns = append(resp.RecentRuns, runInfo(&runs[i]))
	}
	return jsonResult(resp)
}

// reportPair is a run's report and the report of the closest older run that has one.
type reportPair struct {
	run         *contracts.RunRecord
	report      *contracts.TestReport
	previousRun *contracts.RunRecord
	previous    *contracts.TestReport
}

// findReports locates the report of runID (or of the newest run that has one
// when runID is 0) and the report it should be compared against.
func (s *Server) findReports(ctx context.Context, build *contracts.Build, runID int64) (*reportPair, error) {
	runs, err := s.store.ListRuns(ctx, build.ID, build.TenantID, reportScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	pair := &reportPair{}
	for i := range runs {
		run := &runs[i]
		if pair.report == nil && runID != 0 && run.ProviderRunID != runID {
			continue
		}

		report, err := s.store.FindTestReportByRunID(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load test report: %w", err)
		}

		if pair.report == nil {
			if report == nil {
				if runID != 0 {
					return nil, fmt.Errorf("run %d has no test report", runID)
				}
				continue
			}
			pair.run, pair.report = run, report
			continue
		}
		if report != nil {
			pair.previousRun, pair.previous = run, report
			break
		}
	}

	if pair.report == nil {
		if runID != 0 {
			return nil, fmt.Errorf("run %d not found in the %d most recent runs", runID, reportScanLimit)
		}
		return nil, fmt.Errorf("no test reports for build %s", build.ID)
	}
	return pair, nil
}

func (s *Server) handleGetTestReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	build, errResult := s.loadBuild(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	runID := int64(request.GetInt("run_id", 0))
	limit := request.GetInt("limit", DefaultNewLimit)

	pair, err := s.findReports(ctx, build, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := TierFailures(pair.report, pair.previous, limit)
	resp.Run = runInfo(pair.run)
	resp.Summary = Summarize(pair.report)
	if pair.previousRun != nil {
		resp.ComparedToRun = pair.previousRun.ProviderRunID
	}
	return jsonResult(resp)
}

func (s *Server) handleGetTestFailure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	build, errResult := s.loadBuild(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	runID := int64(request.GetInt("run_id", 0))
	failureID := request.GetString("failure_id", "")
	if runID == 0 || failureID == "" {
		return mcp.NewToolResultError("run_id and failure_id parameters are required"), nil
	}

	run, err := s.store.FindByProviderRunID(ctx, build.ID, runID, build.TenantID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load run: %v", err)), nil
	}
	if run == nil {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %d", runID)), nil
	}
	report, err := s.store.FindTestReportByRunID(ctx, run.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load test report: %v", err)), nil
	}

	failure, ok := FindFailure(report, failureID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("failure not found: %s", failureID)), nil
	}
	return jsonResult(failure)
}

func (s *Server) handleParseTestReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	limit := request.GetInt("limit", DefaultNewLimit)

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}
	report := junit.ParseArchive(data)
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no usable test results in %s", path)), nil
	}

	resp := TierFailures(report, nil, limit)
	resp.Summary = Summarize(report)
	return jsonResult(resp)
}
