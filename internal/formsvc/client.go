/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package formsvc talks to the remote schema service that drives every
// node's multi-step form. One operation: submit the collected answers plus
// step context, get the next form schema back.
package formsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"blockcanvas/internal/domain"

	"github.com/xeipuuv/gojsonschema"
)

// ProtocolError reports a non-2xx response from the schema service. Message
// carries the service's own error text when the body was a JSON error
// envelope, otherwise the raw body.
type ProtocolError struct {
	StatusCode int
	Message    string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("schema service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("schema service returned status %d: %s", e.StatusCode, e.Message)
}

// StepMetadata identifies the submitting node to the service.
type StepMetadata struct {
	NodeID string `json:"nodeId"`
}

// StepRequest is the submit payload. Step is 1-based: the number of the
// step being answered, so one past the recorded history length.
type StepRequest struct {
	Step               int                 `json:"step"`
	Answers            map[string]any      `json:"answers"`
	PreviousFormSchema *domain.Schema      `json:"previous_form_schema"`
	History            []domain.StepRecord `json:"history"`
	Metadata           StepMetadata        `json:"metadata"`
}

// StepResponse carries the schema for the next step.
type StepResponse struct {
	NextFormSchema *domain.Schema `json:"next_form_schema"`
}

// responseEnvelope is the structural contract a 2xx body must meet before
// we decode it. Kept loose on purpose: the schema payload itself is opaque
// here, only the envelope shape is enforced.
const responseEnvelope = `{
	"type": "object",
	"properties": {
		"next_form_schema": {"type": ["object", "null"]}
	},
	"required": ["next_form_schema"]
}`

// Client submits step answers to the schema service.
type Client struct {
	BaseURL  string
	client   *http.Client
	envelope *gojsonschema.Schema
}

// NewClient creates a client for the given service base URL. A trailing
// slash is normalized away.
func NewClient(baseURL string) (*Client, error) {
	env, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseEnvelope))
	if err != nil {
		return nil, fmt.Errorf("compile response envelope: %w", err)
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
		envelope: env,
	}, nil
}

// Submit posts one step and returns the next-step response. Every failure
// path leaves the caller's state untouched; a *ProtocolError means the
// service itself rejected the step.
func (c *Client) Submit(ctx context.Context, req StepRequest) (*StepResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal step request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/step", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit step: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	res, err := c.envelope.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}
	if !res.Valid() {
		var parts []string
		for _, desc := range res.Errors() {
			parts = append(parts, desc.String())
		}
		return nil, fmt.Errorf("malformed service response: %s", strings.Join(parts, "; "))
	}

	var out StepResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// errorMessage extracts the service's error text. A JSON body with an
// "error" member wins; anything else is reported verbatim.
func errorMessage(raw []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(string(raw))
}
