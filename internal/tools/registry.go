package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "swarm_status",
		Description: "Report whether the agent swarm is running and how many agents are still out",
	}, NewSwarmStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "launch_swarm",
		Description: "Deploy the agent swarm; each agent files one dossier for review",
	}, NewLaunchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stop_swarm",
		Description: "Recall all agents of the running swarm",
	}, NewStopHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_findings",
		Description: "List intelligence dossiers, optionally filtered by wing, status and minimum confidence",
	}, NewListFindingsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_finding",
		Description: "Retrieve one dossier with its analysis, findings, advice and metrics",
	}, NewGetFindingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "approve_finding",
		Description: "Publish a dossier that is awaiting review",
	}, NewReviewHandler(deps, ActionApprove))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kill_finding",
		Description: "Burn a dossier that is awaiting review; it is removed from the feed",
	}, NewReviewHandler(deps, ActionKill))
}
