package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/raphaelgruber/infomly/internal/metrics"
)

// findingsResponse is the envelope of GET /findings. Records are kept raw so
// each one is decoded and validated on its own.
type findingsResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ListFindings fetches the dossier feed for filter.
// Malformed records are returned in FindingsPage.Quarantined, not in Findings.
func (c *Client) ListFindings(ctx context.Context, filter Filter) (*FindingsPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var resp findingsResponse
	if err := c.do(ctx, metrics.OpFindings, http.MethodGet, "/findings", filter.Values(), nil, &resp); err != nil {
		return nil, err
	}

	page := decodeFindings(resp.Data)
	for _, q := range page.Quarantined {
		c.logger.Warn("quarantined malformed finding",
			slog.Int("index", q.Index),
			slog.String("id", q.ID.String()),
			slog.String("reason", q.Reason),
		)
	}
	return &page, nil
}

// Approve publishes a dossier under review.
func (c *Client) Approve(ctx context.Context, id FindingID) (Ack, error) {
	return c.review(ctx, metrics.OpApprove, id, "approve")
}

// Kill removes a dossier under review.
func (c *Client) Kill(ctx context.Context, id FindingID) (Ack, error) {
	return c.review(ctx, metrics.OpKill, id, "kill")
}

func (c *Client) review(ctx context.Context, op string, id FindingID, action string) (Ack, error) {
	ack := Ack{}
	path := "/admin/review/" + url.PathEscape(id.String()) + "/" + action
	if err := c.do(ctx, op, http.MethodPost, path, nil, nil, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}
