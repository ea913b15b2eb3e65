// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/infomly/internal/client"
)

// SwarmOps is the swarm control surface the tools drive.
type SwarmOps interface {
	Status(ctx context.Context) (*client.SwarmStatus, error)
	Launch(ctx context.Context) (client.Ack, error)
	Stop(ctx context.Context) (client.Ack, error)
}

// FindingOps is the dossier surface the tools drive.
type FindingOps interface {
	List(ctx context.Context, filter client.Filter) (*client.FindingsPage, error)
	Find(ctx context.Context, id client.FindingID) (*client.Finding, error)
	Approve(ctx context.Context, id client.FindingID) (client.Ack, error)
	Kill(ctx context.Context, id client.FindingID) (client.Ack, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Swarm    SwarmOps
	Findings FindingOps
	Logger   *slog.Logger
}
