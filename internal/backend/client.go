/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the sync API, used by the desktop app
// under the sync feature flag.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a sync client. baseURL may include a trailing slash; it
// will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, merr := json.Marshal(body)
		if merr != nil {
			return merr
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// Workspace is a minimal projection for listing.
type Workspace struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListWorkspaces returns workspaces known to the server.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var list []Workspace
	if err := c.doJSON(ctx, http.MethodGet, "/api/workspaces", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SnapshotEnvelope matches the server response for the latest snapshot.
type SnapshotEnvelope struct {
	StableID  string          `json:"stable_id"`
	Version   int64           `json:"version"`
	CreatedAt string          `json:"created_at"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// GetSnapshot fetches the latest snapshot for a workspace.
func (c *Client) GetSnapshot(ctx context.Context, stableID string) (*SnapshotEnvelope, error) {
	var env SnapshotEnvelope
	path := fmt.Sprintf("/api/workspaces/%s/snapshot", url.PathEscape(stableID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// PushSnapshot uploads a new snapshot version for a workspace.
func (c *Client) PushSnapshot(ctx context.Context, stableID, name string, snapshot json.RawMessage) (int64, error) {
	body := map[string]any{"name": name, "snapshot": snapshot}
	var out struct {
		Version int64 `json:"version"`
	}
	path := fmt.Sprintf("/api/workspaces/%s/snapshot", url.PathEscape(stableID))
	if err := c.doJSON(ctx, http.MethodPut, path, body, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}
