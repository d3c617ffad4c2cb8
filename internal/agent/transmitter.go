package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/hostpulse/dash/internal/client"
)

const userAgent = "hostpulse-agent/1.0"

// Transmitter ships metrics samples to the monitoring server with API
// key authentication and exponential backoff retries.
type Transmitter struct {
	serverURL     string
	apiKey        string
	retryAttempts int
	retryBackoff  float64 // delay for attempt n is backoff^n seconds
	client        *http.Client
	logger        *slog.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewTransmitter creates a transmitter for the given server.
func NewTransmitter(serverURL, apiKey string, retryAttempts int, retryBackoff float64, logger *slog.Logger) *Transmitter {
	if logger == nil {
		logger = slog.Default()
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	if retryBackoff <= 0 {
		retryBackoff = 2.0
	}
	return &Transmitter{
		serverURL:     serverURL,
		apiKey:        apiKey,
		retryAttempts: retryAttempts,
		retryBackoff:  retryBackoff,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		sleep:         time.Sleep,
	}
}

// Send posts one metrics sample, retrying transient failures with
// exponential backoff. Authentication failures are not retried.
func (t *Transmitter) Send(ctx context.Context, m *client.SystemMetrics) error {
	var lastErr error
	for attempt := 0; attempt < t.retryAttempts; attempt++ {
		err := t.post(ctx, m)
		if err == nil {
			return nil
		}
		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt < t.retryAttempts-1 {
			delay := time.Duration(math.Pow(t.retryBackoff, float64(attempt)) * float64(time.Second))
			t.logger.Info("metrics send failed, retrying", "attempt", attempt+1, "delay", delay, "err", err)
			t.sleep(delay)
		}
	}
	return fmt.Errorf("metrics send after %d attempts: %w", t.retryAttempts, lastErr)
}

// Register obtains an API key for a new agent and stores it on the
// transmitter for subsequent sends.
func (t *Transmitter) Register(ctx context.Context, serverID string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"server_id": serverID,
		"metadata":  map[string]string{},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.serverURL+"/api/v1/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register: %d %s", resp.StatusCode, string(data))
	}

	var result struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("register: decode response: %w", err)
	}
	if result.APIKey == "" {
		return "", fmt.Errorf("register: response missing api_key")
	}
	t.apiKey = result.APIKey
	return result.APIKey, nil
}

// permanentError wraps failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (t *Transmitter) post(ctx context.Context, m *client.SystemMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return &permanentError{fmt.Errorf("marshal metrics: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.serverURL+"/api/v1/metrics", bytes.NewReader(data))
	if err != nil {
		return &permanentError{err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("X-API-Key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post metrics: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &permanentError{fmt.Errorf("authentication failed: invalid API key")}
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("post metrics: %d %s", resp.StatusCode, string(body))
	}
}
