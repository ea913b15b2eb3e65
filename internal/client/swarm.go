package client

import (
	"context"
	"net/http"

	"github.com/raphaelgruber/infomly/internal/metrics"
)

// Launch asks the backend to start a swarm run.
func (c *Client) Launch(ctx context.Context) (Ack, error) {
	ack := Ack{}
	if err := c.do(ctx, metrics.OpLaunch, http.MethodPost, "/admin/swarm/launch", nil, nil, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// Stop recalls all agents of the running swarm.
func (c *Client) Stop(ctx context.Context) (Ack, error) {
	ack := Ack{}
	if err := c.do(ctx, metrics.OpStop, http.MethodPost, "/admin/swarm/stop", nil, nil, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// Status returns the backend's current swarm snapshot.
func (c *Client) Status(ctx context.Context) (*SwarmStatus, error) {
	var status SwarmStatus
	if err := c.do(ctx, metrics.OpStatus, http.MethodGet, "/admin/swarm/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
