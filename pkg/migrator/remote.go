package migrator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RemoteExecutor submits migration payloads to an HTTP SQL-execution endpoint
// when direct connection execution is unavailable. The payload is sent as a
// single unit; non-2xx responses are failures with the response body as the
// cause.
type RemoteExecutor struct {
	url    string
	apiKey string
	client *http.Client
}

// NewRemoteExecutor creates a remote executor for the given endpoint. The API
// key is sent as a bearer token.
func NewRemoteExecutor(url, apiKey string) *RemoteExecutor {
	return &RemoteExecutor{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Execute submits the script for execution and fails on any non-2xx response.
func (r *RemoteExecutor) Execute(ctx context.Context, script string) error {
	body, err := json.Marshal(map[string]string{"query": script})
	if err != nil {
		return errors.Wrap(err, "failed to encode remote payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build remote request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "remote execution request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("remote execution failed: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
