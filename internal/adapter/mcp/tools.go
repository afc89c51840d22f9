package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/Sentinel/internal/domain/action"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.gateCheckTool(),
		s.gateReportTool(),
		s.sessionStatusTool(),
		s.listPatternsTool(),
	)
}

func (s *Server) gateCheckTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("gate_check",
		mcplib.WithDescription("Check a proposed action against the session's confidence tier, risk state, and pattern enforcement before executing it"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The agent session performing the action"),
		),
		mcplib.WithString("kind",
			mcplib.Required(),
			mcplib.Description("Action kind: read, write, edit, delete, command, research, probe, verify, vcs, test"),
		),
		mcplib.WithString("target",
			mcplib.Description("File or resource the action applies to"),
		),
		mcplib.WithString("command",
			mcplib.Description("Full command line, for command actions"),
		),
		mcplib.WithBoolean("target_exists",
			mcplib.Description("Whether the target currently exists at the interception point"),
		),
		mcplib.WithBoolean("override",
			mcplib.Description("Explicit operator override for this single action; always audited"),
		),
		mcplib.WithArray("patterns",
			mcplib.Description("Behavioral pattern names detected for this action"),
		),
		mcplib.WithNumber("token_estimate",
			mcplib.Description("Caller's running context token estimate"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGateCheck,
	}
}

func (s *Server) gateReportTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("gate_report",
		mcplib.WithDescription("Report a completed action so the session's confidence and risk state reflect it"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The agent session that performed the action"),
		),
		mcplib.WithString("kind",
			mcplib.Required(),
			mcplib.Description("Action kind that was performed"),
		),
		mcplib.WithString("target",
			mcplib.Description("File or resource the action applied to"),
		),
		mcplib.WithBoolean("success",
			mcplib.Description("Whether the action completed successfully"),
		),
		mcplib.WithString("violation",
			mcplib.Description("Completed policy violation observed by the caller, if any"),
		),
		mcplib.WithArray("corrected",
			mcplib.Description("Pattern names whose advisory the agent acted on before completing"),
		),
		mcplib.WithNumber("token_estimate",
			mcplib.Description("Caller's running context token estimate"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGateReport,
	}
}

func (s *Server) sessionStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("session_status",
		mcplib.WithDescription("Get a session's confidence, risk, tier, and evidence ledger"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to inspect"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSessionStatus,
	}
}

func (s *Server) listPatternsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_patterns",
		mcplib.WithDescription("List all tracked behavioral patterns with their enforcement phase and metrics"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListPatterns,
	}
}

func (s *Server) handleGateCheck(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Gate == nil {
		return mcplib.NewToolResultError("gate not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	kind, ok := args["kind"].(string)
	if !ok || kind == "" {
		return mcplib.NewToolResultError("kind is required"), nil
	}

	ar := &action.Request{
		SessionID: sessionID,
		Kind:      action.ParseKind(kind),
	}
	if v, ok := args["target"].(string); ok {
		ar.Target = v
	}
	if v, ok := args["command"].(string); ok {
		ar.Command = v
	}
	if v, ok := args["target_exists"].(bool); ok {
		ar.TargetExists = v
	}
	if v, ok := args["override"].(bool); ok {
		ar.Override = v
	}
	if v, ok := args["token_estimate"].(float64); ok {
		ar.TokenEstimate = int(v)
	}
	if raw, ok := args["patterns"].([]any); ok {
		for _, p := range raw {
			if name, ok := p.(string); ok {
				ar.Patterns = append(ar.Patterns, name)
			}
		}
	}

	decision, err := s.deps.Gate.Check(ctx, ar)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("gate check failed", err), nil
	}
	data, err := json.Marshal(decision)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal decision", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGateReport(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reporter == nil {
		return mcplib.NewToolResultError("reporter not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	kind, ok := args["kind"].(string)
	if !ok || kind == "" {
		return mcplib.NewToolResultError("kind is required"), nil
	}

	out := &action.Outcome{
		SessionID: sessionID,
		Kind:      action.ParseKind(kind),
		Success:   true,
	}
	if v, ok := args["target"].(string); ok {
		out.Target = v
	}
	if v, ok := args["success"].(bool); ok {
		out.Success = v
	}
	if v, ok := args["violation"].(string); ok {
		out.Violation = v
	}
	if raw, ok := args["corrected"].([]any); ok {
		for _, p := range raw {
			if name, ok := p.(string); ok {
				out.Corrected = append(out.Corrected, name)
			}
		}
	}
	if v, ok := args["token_estimate"].(float64); ok {
		out.TokenEstimate = int(v)
	}

	sess, err := s.deps.Reporter.Report(ctx, out)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("gate report failed", err), nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal session", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleSessionStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Sessions == nil {
		return mcplib.NewToolResultError("session reader not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	sess, err := s.deps.Sessions.Inspect(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to inspect session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal session", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListPatterns(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Patterns == nil {
		return mcplib.NewToolResultError("pattern reader not configured"), nil
	}
	states, err := s.deps.Patterns.ListPatterns(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list patterns", err), nil
	}
	data, err := json.Marshal(states)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal patterns", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
