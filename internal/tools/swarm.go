package tools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/infomly/internal/client"
)

// EmptyInput is the input schema of tools that take no arguments.
type EmptyInput struct{}

// SwarmStatusResult is the response from the swarm_status tool.
type SwarmStatusResult struct {
	Active  bool   `json:"active"`
	Pending int    `json:"pending,omitempty"`
	Total   int    `json:"total,omitempty"`
	Summary string `json:"summary"`
}

// NewSwarmStatusHandler creates the swarm_status tool handler.
func NewSwarmStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[EmptyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
		status, err := deps.Swarm.Status(ctx)
		if err != nil {
			deps.Logger.Error("swarm status failed", "error", err)
			return backendError("Failed to read swarm status", err), nil, nil
		}

		result := SwarmStatusResult{Active: status.Active, Summary: "Swarm on standby"}
		if status.Active {
			result.Summary = "Swarm active"
			if p := status.Progress; p != nil {
				result.Pending = p.Pending
				result.Total = p.Total
			}
		}
		return JSONResult(result), nil, nil
	}
}

// NewLaunchHandler creates the launch_swarm tool handler.
func NewLaunchHandler(deps *Dependencies) mcp.ToolHandlerFor[EmptyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
		ack, err := deps.Swarm.Launch(ctx)
		if err != nil {
			deps.Logger.Error("launch failed", "error", err)
			return backendError("Failed to launch swarm", err), nil, nil
		}
		return TextResult(ackText(ack, "Swarm launched")), nil, nil
	}
}

// NewStopHandler creates the stop_swarm tool handler.
func NewStopHandler(deps *Dependencies) mcp.ToolHandlerFor[EmptyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
		ack, err := deps.Swarm.Stop(ctx)
		if err != nil {
			deps.Logger.Error("stop failed", "error", err)
			return backendError("Failed to stop swarm", err), nil, nil
		}
		return TextResult(ackText(ack, "Swarm stopped")), nil, nil
	}
}

func ackText(ack client.Ack, fallback string) string {
	if msg := ack.Message(); msg != "" {
		return msg
	}
	return fallback
}

// backendError maps a remote failure to an error result with a recovery hint.
func backendError(msg string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, client.ErrInvalidFilter):
		return ErrorResult(msg, err.Error())
	case errors.Is(err, client.ErrNetwork):
		return ErrorResult(msg, "Backend may be unreachable")
	case client.StatusCode(err) == http.StatusConflict:
		return ErrorResult(msg, "The swarm is already active")
	default:
		return ErrorResult(msg, err.Error())
	}
}
