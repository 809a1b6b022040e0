package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Placeholder values shipped in sample configuration. A remote configured
// with either of them is treated as unconfigured.
const (
	PlaceholderAppID  = "YOUR_APP_ID"
	PlaceholderAPIKey = "YOUR_GENERATED_API_KEY"
)

// HeaderAPIKey carries the Data API key.
const HeaderAPIKey = "api-key"

// maxResponseBytes bounds how much of a remote response is read.
const maxResponseBytes = 32 << 20

// RemoteConfig describes the Data API endpoint.
type RemoteConfig struct {
	Endpoint   string
	APIKey     string
	DataSource string
	Database   string
}

// IsConfigured returns true when real credentials are present.
func (c RemoteConfig) IsConfigured() bool {
	return c.Endpoint != "" &&
		c.APIKey != "" &&
		c.APIKey != PlaceholderAPIKey &&
		!strings.Contains(c.Endpoint, PlaceholderAppID)
}

// Remote talks to a document Data API over HTTP.
type Remote struct {
	cfg        RemoteConfig
	httpClient *http.Client
}

// NewRemote creates a Remote. A nil client gets NewHTTPClient(DefaultTimeout).
func NewRemote(cfg RemoteConfig, httpClient *http.Client) *Remote {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	return &Remote{cfg: cfg, httpClient: httpClient}
}

// remoteResponse is the union of Data API response shapes.
type remoteResponse struct {
	Documents     []Document `json:"documents"`
	InsertedID    any        `json:"insertedId"`
	ModifiedCount *int       `json:"modifiedCount"`
	UpsertedID    any        `json:"upsertedId"`
}

// Do performs the action remotely. Every failure is reported as Unavailable.
func (r *Remote) Do(ctx context.Context, action Action, collection string, payload Payload) RemoteResult {
	body, err := json.Marshal(r.requestBody(action, collection, payload))
	if err != nil {
		return Unavailable(fmt.Errorf("%w: encode request: %w", ErrRemoteUnavailable, err))
	}

	url := r.cfg.Endpoint + "/action/" + string(action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Unavailable(fmt.Errorf("%w: build request: %w", ErrRemoteUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, r.cfg.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Unavailable(fmt.Errorf("%w: %w", ErrRemoteUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Unavailable(fmt.Errorf("%w: read body: %w", ErrRemoteUnavailable, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Unavailable(fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, truncate(string(data), 200)))
	}

	var decoded remoteResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Unavailable(fmt.Errorf("%w: malformed response: %w", ErrRemoteUnavailable, err))
	}

	result := Result{Documents: decoded.Documents}
	if action == ActionFind && result.Documents == nil {
		result.Documents = []Document{}
	}
	if decoded.InsertedID != nil {
		result.InsertedID = stringifyID(decoded.InsertedID)
	}
	if decoded.UpsertedID != nil {
		result.UpsertedID = stringifyID(decoded.UpsertedID)
	}
	if decoded.ModifiedCount != nil {
		result.ModifiedCount = *decoded.ModifiedCount
	}

	return Ok(result)
}

func (r *Remote) requestBody(action Action, collection string, payload Payload) map[string]any {
	body := map[string]any{
		"dataSource": r.cfg.DataSource,
		"database":   r.cfg.Database,
		"collection": collection,
	}
	if payload.Filter != nil {
		body["filter"] = payload.Filter
	}
	if payload.Update != nil {
		body["update"] = map[string]any{"$set": payload.Update}
	}
	if payload.Document != nil {
		body["document"] = payload.Document
	}
	if payload.Upsert {
		body["upsert"] = true
	}
	return body
}

// stringifyID flattens ids such as {"$oid": "..."} to a plain string.
func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case map[string]any:
		if oid, ok := id["$oid"].(string); ok {
			return oid
		}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
