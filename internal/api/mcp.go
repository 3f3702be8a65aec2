package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/storage"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Matching MatchService
	Version  string
}

// NewMCPServer creates an MCP server with the reelmatch tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"reelmatch",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("reelmatch ranks video-resume candidates against job postings."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("match_candidates",
			mcp.WithDescription("Rank all job seekers against a job posting and store the matches."),
			mcp.WithNumber("job_posting_id", mcp.Description("Job posting id"), mcp.Required()),
			mcp.WithNumber("threshold", mcp.Description("Minimum similarity in [0, 1] (default from config)")),
		),
		mcpMatchCandidates(deps),
	)

	s.AddTool(
		mcp.NewTool("list_matches",
			mcp.WithDescription("List stored matches for a job posting, best first."),
			mcp.WithNumber("job_posting_id", mcp.Description("Job posting id"), mcp.Required()),
			mcp.WithString("status", mcp.Description("Filter by status: pending, accepted or rejected")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpListMatches(deps),
	)

	s.AddTool(
		mcp.NewTool("set_match_status",
			mcp.WithDescription("Accept or reject a stored match."),
			mcp.WithString("match_id", mcp.Description("Match id"), mcp.Required()),
			mcp.WithString("status", mcp.Description("pending, accepted or rejected"), mcp.Required()),
		),
		mcpSetMatchStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"jobs://active",
			"Active Job Postings",
			mcp.WithResourceDescription("Job postings currently open for matching"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceActiveJobs(deps),
	)

	return s
}

func mcpMatchCandidates(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := req.RequireInt("job_posting_id")
		if err != nil || jobID <= 0 {
			return mcpError("job_posting_id is required"), nil
		}

		var threshold *float64
		if _, ok := req.GetArguments()["threshold"]; ok {
			th := req.GetFloat("threshold", 0)
			threshold = &th
		}

		rep, err := deps.Matching.MatchJob(ctx, int64(jobID), threshold)
		if errors.Is(err, talent.ErrNotFound) {
			return mcpError(fmt.Sprintf("job posting %d not found", jobID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("match failed: %v", err)), nil
		}

		b, err := json.Marshal(reportView(rep))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListMatches(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := req.RequireInt("job_posting_id")
		if err != nil || jobID <= 0 {
			return mcpError("job_posting_id is required"), nil
		}
		status := talent.MatchStatus(req.GetString("status", ""))
		if status != "" && !status.Valid() {
			return mcpError(fmt.Sprintf("unknown status %q", status)), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		matches, err := deps.Store.ListMatches(ctx, int64(jobID), status, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing matches failed: %v", err)), nil
		}
		if len(matches) == 0 {
			return mcpText("[]"), nil
		}

		out := make([]MatchView, len(matches))
		for i, m := range matches {
			out[i] = matchView(m)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetMatchStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("match_id")
		if err != nil {
			return mcpError("match_id is required"), nil
		}
		status, err := req.RequireString("status")
		if err != nil {
			return mcpError("status is required"), nil
		}

		m, err := deps.Store.SetMatchStatus(ctx, id, talent.MatchStatus(status))
		if errors.Is(err, talent.ErrNotFound) {
			return mcpError(fmt.Sprintf("match %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to set status: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Match %s is now %s", m.ID, m.Status)), nil
	}
}

func mcpResourceActiveJobs(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jobs, err := deps.Store.ListJobPostings(ctx, talent.JobActive)
		if err != nil {
			return nil, fmt.Errorf("failed to list active job postings: %w", err)
		}

		out := make([]JobPostingView, len(jobs))
		for i, j := range jobs {
			out[i] = postingView(j)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job postings: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
