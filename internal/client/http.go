package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient makes REST calls to the monitoring server's dashboard API.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAPIClient creates a client targeting the given base URL
// (e.g. "http://127.0.0.1:8000").
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ListServers fetches the servers overview.
func (c *APIClient) ListServers(ctx context.Context) ([]*ServerOverview, error) {
	var resp ServersResponse
	if err := c.get(ctx, "/api/v1/dashboard/servers", &resp); err != nil {
		return nil, err
	}
	return resp.Servers, nil
}

// ListActiveAlerts fetches currently active alerts.
func (c *APIClient) ListActiveAlerts(ctx context.Context) ([]*Alert, error) {
	var resp AlertsResponse
	if err := c.get(ctx, "/api/v1/dashboard/alerts?active_only=true", &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// AcknowledgeAlert marks an alert as seen by the operator.
func (c *APIClient) AcknowledgeAlert(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/dashboard/alerts/%d/acknowledge", id), nil, nil)
}

// ResolveAlert closes an alert.
func (c *APIClient) ResolveAlert(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/dashboard/alerts/%d/resolve", id), nil, nil)
}

// RegisterServer registers a new host for monitoring and returns the
// API key minted for its agent.
func (c *APIClient) RegisterServer(ctx context.Context, req RegisterServerRequest) (*RegisterServerResponse, error) {
	var resp RegisterServerResponse
	if err := c.post(ctx, "/api/v1/dashboard/management/servers/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeregisterServer revokes a monitored host.
func (c *APIClient) DeregisterServer(ctx context.Context, serverID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/v1/dashboard/management/servers/"+serverID, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DELETE %s: %d %s", serverID, resp.StatusCode, string(body))
	}
	return nil
}

func (c *APIClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *APIClient) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *APIClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
