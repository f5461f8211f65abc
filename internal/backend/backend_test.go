/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenSignAndVerify(t *testing.T) {
	tok, err := signToken("secret", "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	sub, err := verifyToken("secret", tok)
	if err != nil {
		t.Fatalf("verifyToken: %v", err)
	}
	if sub != "alice" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestTokenRejectsBadSignature(t *testing.T) {
	tok, _ := signToken("secret", "alice", time.Now().Add(time.Hour))
	if _, err := verifyToken("other-secret", tok); err == nil {
		t.Fatalf("wrong secret accepted")
	}
	if _, err := verifyToken("secret", "not.a.token.at.all"); err == nil {
		t.Fatalf("garbage token accepted")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	tok, _ := signToken("secret", "alice", time.Now().Add(-time.Minute))
	if _, err := verifyToken("secret", tok); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestWithAuthRequiresBearer(t *testing.T) {
	h := withAuth("secret", func(w http.ResponseWriter, r *http.Request, sub string) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspaces", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", rec.Code)
	}

	tok, _ := signToken("secret", "alice", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", rec.Code)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0001_init.sql")
	if err != nil || v != 1 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error for missing version prefix")
	}
}

func TestClientSnapshotRoundTripAgainstFake(t *testing.T) {
	// fake server speaking the sync API shape; the real handlers need
	// Postgres and are covered by integration runs
	mux := http.NewServeMux()
	mux.HandleFunc("/api/workspaces/ws-1/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Snapshot json.RawMessage `json:"snapshot"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if string(body.Snapshot) != `[{"id":"p1"}]` {
				t.Errorf("snapshot body = %s", body.Snapshot)
			}
			writeJSON(w, http.StatusOK, map[string]any{"stable_id": "ws-1", "version": 3})
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{
				"stable_id":  "ws-1",
				"version":    3,
				"created_at": time.Now().UTC().Format(time.RFC3339),
				"snapshot":   json.RawMessage(`[{"id":"p1"}]`),
			})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	v, err := c.PushSnapshot(context.Background(), "ws-1", "My Canvas", json.RawMessage(`[{"id":"p1"}]`))
	if err != nil {
		t.Fatalf("PushSnapshot: %v", err)
	}
	if v != 3 {
		t.Fatalf("version = %d", v)
	}
	env, err := c.GetSnapshot(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if env.Version != 3 || string(env.Snapshot) != `[{"id":"p1"}]` {
		t.Fatalf("envelope = %+v", env)
	}
}
