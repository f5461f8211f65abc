/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package hub

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestVerifierChallengeIsS256(t *testing.T) {
	v, err := NewVerifier()
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if v.Value == "" || v.Challenge == "" {
		t.Fatalf("empty verifier: %+v", v)
	}
	sum := sha256.Sum256([]byte(v.Value))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if v.Challenge != want {
		t.Fatalf("challenge mismatch")
	}
	// two verifiers must not collide
	v2, _ := NewVerifier()
	if v2.Value == v.Value {
		t.Fatalf("verifier values repeat")
	}
}

func TestAuthURLCarriesPKCEParams(t *testing.T) {
	c := NewClient("https://api.example.test", "https://auth.example.test", "client-1", "")
	v, _ := NewVerifier()
	raw := c.AuthURL(v, "http://127.0.0.1:9999/cb", "state-x")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-1" || q.Get("state") != "state-x" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("code_challenge") != v.Challenge || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("pkce params missing: %v", q)
	}
}

func TestExchange(t *testing.T) {
	v, _ := NewVerifier()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/oauth/access_token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = r.ParseForm()
		if r.Form.Get("code") != "abc" || r.Form.Get("code_verifier") != v.Value {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-9"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "client-1", "")
	tok, err := c.Exchange(context.Background(), "abc", v, "http://127.0.0.1/cb")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok != "tok-9" || c.Token != "tok-9" {
		t.Fatalf("token = %q (client %q)", tok, c.Token)
	}
}

func TestExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "bad_verification_code"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "client-1", "")
	v, _ := NewVerifier()
	if _, err := c.Exchange(context.Background(), "nope", v, ""); err == nil {
		t.Fatalf("expected rejection error")
	}
}

func TestProfileSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`{"login": "writer", "name": "A Writer"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "cid", "tok")
	p, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Login != "writer" {
		t.Fatalf("profile = %+v", p)
	}
}

func TestEnsureBranchCreatesFromBase(t *testing.T) {
	var created map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/git/ref/heads/snapshots", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/repos/o/r/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": {"sha": "abc123"}}`))
	})
	mux.HandleFunc("/repos/o/r/git/refs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&created)
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "cid", "tok")
	if err := c.EnsureBranch(context.Background(), "o", "r", "snapshots", "main"); err != nil {
		t.Fatalf("EnsureBranch: %v", err)
	}
	if created["ref"] != "refs/heads/snapshots" || created["sha"] != "abc123" {
		t.Fatalf("created = %v", created)
	}
}

func TestEnsureBranchExistingIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/git/refs") && r.Method == http.MethodPost {
			t.Errorf("existing branch was recreated")
		}
		_, _ = w.Write([]byte(`{"object": {"sha": "abc123"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "cid", "tok")
	if err := c.EnsureBranch(context.Background(), "o", "r", "snapshots", "main"); err != nil {
		t.Fatalf("EnsureBranch: %v", err)
	}
}

func TestUpsertFileUpdateCarriesSHA(t *testing.T) {
	var put map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"sha": "oldsha"}`))
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&put)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "cid", "tok")
	err := c.UpsertFile(context.Background(), "o", "r", "snapshots", "projects.json", "update snapshot", []byte(`[]`))
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	if put["sha"] != "oldsha" || put["branch"] != "snapshots" {
		t.Fatalf("put = %v", put)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(put["content"]); string(decoded) != "[]" {
		t.Fatalf("content = %q", put["content"])
	}
}

func TestOpenPullRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/pulls" || r.Method != http.MethodPost {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 7, "html_url": "https://hub.example/pr/7"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "cid", "tok")
	pr, err := c.OpenPullRequest(context.Background(), "o", "r", "Share canvas", "snapshots", "main", "snapshot upload")
	if err != nil {
		t.Fatalf("OpenPullRequest: %v", err)
	}
	if pr.Number != 7 {
		t.Fatalf("pr = %+v", pr)
	}
}
