/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package hub shares project snapshots through a Git hosting service: OAuth
// sign-in with PKCE, then ensure-branch / upsert-file / open-pull-request
// against a configured repository. The REST contract follows the GitHub v3
// API; the base URLs are configurable so tests and self-hosted instances
// can point elsewhere.
package hub

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier is a PKCE code verifier with its derived S256 challenge.
type Verifier struct {
	Value     string
	Challenge string
}

// NewVerifier generates a PKCE verifier and its S256 challenge.
func NewVerifier() (Verifier, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Verifier{}, fmt.Errorf("generate verifier: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(value))
	return Verifier{
		Value:     value,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// Client talks to the hub's OAuth and REST endpoints.
type Client struct {
	// APIBase is the REST root, e.g. https://api.github.com.
	APIBase string
	// AuthBase is the OAuth root, e.g. https://github.com.
	AuthBase string
	ClientID string
	Token    string
	client   *http.Client
}

// NewClient builds a hub client. token may be empty until Exchange ran.
func NewClient(apiBase, authBase, clientID, token string) *Client {
	return &Client{
		APIBase:  strings.TrimRight(apiBase, "/"),
		AuthBase: strings.TrimRight(authBase, "/"),
		ClientID: clientID,
		Token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthURL builds the user-facing authorization URL for the PKCE flow.
func (c *Client) AuthURL(v Verifier, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("code_challenge", v.Challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("scope", "repo read:user")
	return c.AuthBase + "/login/oauth/authorize?" + q.Encode()
}

// Exchange trades an authorization code plus the PKCE verifier for an
// access token and stores it on the client.
func (c *Client) Exchange(ctx context.Context, code string, v Verifier, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.ClientID)
	form.Set("code", code)
	form.Set("code_verifier", v.Value)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthBase+"/login/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: %s", resp.Status)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("token exchange rejected: %s", out.Error)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no token")
	}
	c.Token = out.AccessToken
	return out.AccessToken, nil
}

// Profile is the signed-in user's identity.
type Profile struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// Profile fetches the authenticated user.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.doJSON(ctx, http.MethodGet, "/user", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureBranch creates branch from the head of base if it does not exist
// already. An existing branch is left alone.
func (c *Client) EnsureBranch(ctx context.Context, owner, repo, branch, base string) error {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, branch)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &ref)
	if err == nil {
		return nil
	}
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusNotFound {
		return err
	}

	basePath := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, base)
	if err := c.doJSON(ctx, http.MethodGet, basePath, nil, &ref); err != nil {
		return fmt.Errorf("resolve base branch %s: %w", base, err)
	}
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": ref.Object.SHA,
	}
	createPath := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)
	return c.doJSON(ctx, http.MethodPost, createPath, body, nil)
}

// UpsertFile creates or updates a file on a branch with one commit.
func (c *Client) UpsertFile(ctx context.Context, owner, repo, branch, path, message string, content []byte) error {
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path)

	// an existing file needs its blob sha for the update
	var existing struct {
		SHA string `json:"sha"`
	}
	getPath := apiPath + "?ref=" + url.QueryEscape(branch)
	if err := c.doJSON(ctx, http.MethodGet, getPath, nil, &existing); err != nil {
		var se *statusError
		if !errors.As(err, &se) || se.code != http.StatusNotFound {
			return err
		}
	}

	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	if existing.SHA != "" {
		body["sha"] = existing.SHA
	}
	return c.doJSON(ctx, http.MethodPut, apiPath, body, nil)
}

// PullRequest is the subset of the PR resource callers care about.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// OpenPullRequest opens a PR from head into base.
func (c *Client) OpenPullRequest(ctx context.Context, owner, repo, title, head, base, body string) (*PullRequest, error) {
	payload := map[string]string{
		"title": title,
		"head":  head,
		"base":  base,
		"body":  body,
	}
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("hub returned status %d: %s", e.code, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.APIBase+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
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
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
