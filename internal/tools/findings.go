package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/service"
)

// ListFindingsInput defines the input schema for the list_findings tool.
type ListFindingsInput struct {
	Wing          string `json:"wing,omitempty" jsonschema:"Department: all, The DeepSeek Files, Agentic Infrastructure, Agentic Commerce or GEO Strategy"`
	Sort          string `json:"sort,omitempty" jsonschema:"newest, oldest or highest_confidence"`
	MinConfidence *int   `json:"min_confidence,omitempty" jsonschema:"Minimum confidence score, 0 to 100"`
	Status        string `json:"status,omitempty" jsonschema:"Only dossiers in this review status"`
	Limit         int    `json:"limit,omitempty" jsonschema:"Maximum dossiers returned (default 20)"`
}

// FindingSummary is one row of the list_findings response.
type FindingSummary struct {
	ID         client.FindingID     `json:"id"`
	Title      string               `json:"title"`
	Wing       string               `json:"wing,omitempty"`
	Status     client.FindingStatus `json:"status"`
	Confidence float64              `json:"confidence"`
	CreatedAt  string               `json:"created_at,omitempty"`
}

// ListFindingsResult is the response from the list_findings tool.
type ListFindingsResult struct {
	Findings    []FindingSummary `json:"findings"`
	Total       int              `json:"total"`
	Quarantined int              `json:"quarantined,omitempty"`
}

const defaultListLimit = 20

// NewListFindingsHandler creates the list_findings tool handler.
func NewListFindingsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListFindingsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListFindingsInput) (*mcp.CallToolResult, any, error) {
		filter := client.Filter{
			Wing:          input.Wing,
			Sort:          client.SortOrder(input.Sort),
			MinConfidence: input.MinConfidence,
		}
		page, err := deps.Findings.List(ctx, filter)
		if err != nil {
			deps.Logger.Error("list findings failed", "error", err)
			return backendError("Failed to list findings", err), nil, nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}

		result := ListFindingsResult{
			Findings:    make([]FindingSummary, 0, min(limit, len(page.Findings))),
			Quarantined: len(page.Quarantined),
		}
		for _, f := range page.Findings {
			if input.Status != "" && string(f.Status) != input.Status {
				continue
			}
			result.Total++
			if len(result.Findings) < limit {
				result.Findings = append(result.Findings, summarize(f))
			}
		}
		return JSONResult(result), nil, nil
	}
}

func summarize(f client.Finding) FindingSummary {
	s := FindingSummary{
		ID:         f.ID,
		Title:      f.Title,
		Wing:       f.Wing,
		Status:     f.Status,
		Confidence: f.ConfidenceScore,
	}
	if !f.CreatedAt.IsZero() {
		s.CreatedAt = f.CreatedAt.UTC().Format(time.RFC3339)
	}
	return s
}

// FindingInput identifies one dossier.
type FindingInput struct {
	ID string `json:"id" jsonschema:"Dossier ID as shown by list_findings"`
}

// NewGetFindingHandler creates the get_finding tool handler.
func NewGetFindingHandler(deps *Dependencies) mcp.ToolHandlerFor[FindingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FindingInput) (*mcp.CallToolResult, any, error) {
		if input.ID == "" {
			return ErrorResult("id is required", "Use list_findings to discover dossier IDs"), nil, nil
		}
		f, err := deps.Findings.Find(ctx, client.FindingID(input.ID))
		if errors.Is(err, service.ErrFindingNotFound) {
			return ErrorResult(fmt.Sprintf("Dossier %s not found", input.ID), "Use list_findings to discover dossier IDs"), nil, nil
		}
		if err != nil {
			deps.Logger.Error("get finding failed", "id", input.ID, "error", err)
			return backendError("Failed to load dossier", err), nil, nil
		}
		return JSONResult(f), nil, nil
	}
}

// ReviewAction is a review decision on a dossier.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionKill    ReviewAction = "kill"
)

// NewReviewHandler creates the approve_finding or kill_finding tool handler.
// Only dossiers awaiting review can be acted on.
func NewReviewHandler(deps *Dependencies, action ReviewAction) mcp.ToolHandlerFor[FindingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FindingInput) (*mcp.CallToolResult, any, error) {
		if input.ID == "" {
			return ErrorResult("id is required", "Use list_findings to discover dossier IDs"), nil, nil
		}
		id := client.FindingID(input.ID)

		f, err := deps.Findings.Find(ctx, id)
		if errors.Is(err, service.ErrFindingNotFound) {
			return ErrorResult(fmt.Sprintf("Dossier %s not found", id), "It may already have been killed"), nil, nil
		}
		if err != nil {
			return backendError("Failed to load dossier", err), nil, nil
		}
		if !f.Reviewable() {
			return ErrorResult(fmt.Sprintf("Dossier %s is %s", id, f.Status), "Only pending or review dossiers can be approved or killed"), nil, nil
		}

		verb := "Authorized"
		if action == ActionKill {
			verb = "Burned"
			_, err = deps.Findings.Kill(ctx, id)
		} else {
			_, err = deps.Findings.Approve(ctx, id)
		}
		if err != nil {
			deps.Logger.Error("review failed", "action", string(action), "id", id.String(), "error", err)
			return backendError(fmt.Sprintf("Failed to %s dossier %s", action, id), err), nil, nil
		}

		deps.Logger.Info("review completed", "action", string(action), "id", id.String())
		return TextResult(fmt.Sprintf("%s: INF-%s", verb, id)), nil, nil
	}
}
