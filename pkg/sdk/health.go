package workflows

import "context"

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the database behind the client.
func (c *Client) Health(ctx context.Context) HealthStatus {
	if err := c.Ping(ctx); err != nil {
		return HealthStatus{Status: "error", Checks: map[string]string{"database": "error"}}
	}
	return HealthStatus{Status: "ok", Checks: map[string]string{"database": "ok"}}
}
