/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine drives a node's step lifecycle: collect answers, submit
// them to the schema service, and apply the service's next schema as one
// durable mutation. It owns the per-node concurrency rules: one submission
// in flight per node, and responses landing after the node changed
// underneath them are discarded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"blockcanvas/internal/domain"
	"blockcanvas/internal/formsvc"
	applog "blockcanvas/internal/log"
	"blockcanvas/internal/schemaform"
	"blockcanvas/internal/store"
)

var (
	// ErrBusy means the node already has a submission in flight.
	ErrBusy = errors.New("submission already in flight for this node")
	// ErrCompleted means the node's form has ended and accepts no answers.
	ErrCompleted = errors.New("node is completed")
	// ErrNodeNotFound means the node disappeared before the submission
	// started. Responses arriving after a deletion are discarded silently.
	ErrNodeNotFound = errors.New("node not found")
	// ErrStale means the node changed while the submission was in flight;
	// the response was discarded and nothing was applied.
	ErrStale = errors.New("node changed during submission, response discarded")
	// ErrNoTransition means the service answered success but sent no next
	// schema. The node is left exactly as it was.
	ErrNoTransition = errors.New("service returned no next schema, nothing applied")
)

// Submitter is the slice of the schema service the engine needs.
type Submitter interface {
	Submit(ctx context.Context, req formsvc.StepRequest) (*formsvc.StepResponse, error)
}

// Engine coordinates store, schema service, and transcript.
type Engine struct {
	store      *store.Store
	svc        Submitter
	transcript *store.Transcript
	log        *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool
	seq      map[string]uint64
}

// New builds an engine. transcript may be nil to skip step indexing.
func New(st *store.Store, svc Submitter, transcript *store.Transcript) *Engine {
	return &Engine{
		store:      st,
		svc:        svc,
		transcript: transcript,
		log:        applog.WithComponent("engine"),
		inflight:   make(map[string]bool),
		seq:        make(map[string]uint64),
	}
}

// StepResult reports what a submission did to the node.
type StepResult struct {
	// Step is the 1-based number of the step that was just answered.
	Step int
	// Phase is the node's phase after the mutation.
	Phase domain.NodePhase
}

// Submit answers the node's current step. The answers are validated against
// the current schema (stepped nodes only; the first step's composite shape
// is produced by the form layer), posted to the service, and on success the
// step record and next schema are applied atomically. Exactly one
// submission may be in flight per node; concurrent calls fail fast with
// ErrBusy instead of queueing.
func (e *Engine) Submit(ctx context.Context, projectID, nodeID string, answers map[string]any) (*StepResult, error) {
	n, ok := e.store.GetNode(projectID, nodeID)
	if !ok {
		return nil, ErrNodeNotFound
	}
	if n.Phase() == domain.PhaseCompleted {
		return nil, ErrCompleted
	}
	if n.LastSchema != nil {
		if err := schemaform.Validate(n.LastSchema, answers); err != nil {
			return nil, err
		}
	}

	token, err := e.acquire(nodeID)
	if err != nil {
		return nil, err
	}
	defer e.release(nodeID)

	step := len(n.History) + 1
	l := applog.WithOperation(e.log, "submit").With(
		slog.String("project", projectID),
		slog.String("node", nodeID),
		slog.Int("step", step),
	)

	resp, err := e.svc.Submit(ctx, formsvc.StepRequest{
		Step:               step,
		Answers:            answers,
		PreviousFormSchema: n.LastSchema,
		History:            n.History,
		Metadata:           formsvc.StepMetadata{NodeID: nodeID},
	})
	if err != nil {
		l.Warn("schema service rejected step", slog.Any("err", err))
		return nil, err
	}

	e.mu.Lock()
	stale := e.seq[nodeID] != token
	e.mu.Unlock()
	if stale {
		l.Info("discarding stale response")
		return nil, ErrStale
	}
	// the node may have been deleted while the request was out
	if _, ok := e.store.GetNode(projectID, nodeID); !ok {
		l.Info("node deleted mid flight, response dropped")
		return nil, ErrNodeNotFound
	}

	// absence of a next schema is not a transition, so nothing is recorded
	if resp.NextFormSchema == nil {
		l.Warn("service sent no next schema")
		return nil, ErrNoTransition
	}

	rec := domain.StepRecord{Answers: answers, Schema: n.LastSchema}
	if err := e.store.ApplyStep(projectID, nodeID, rec, resp.NextFormSchema); err != nil {
		return nil, fmt.Errorf("apply step: %w", err)
	}
	if e.transcript != nil {
		if terr := e.transcript.RecordStep(ctx, projectID, nodeID, step, rec); terr != nil {
			l.Warn("transcript record failed", slog.Any("err", terr))
		}
	}

	after, _ := e.store.GetNode(projectID, nodeID)
	l.Info("step applied", slog.String("phase", string(after.Phase())))
	return &StepResult{Step: step, Phase: after.Phase()}, nil
}

// Invalidate bumps the node's sequence so any in-flight submission for it
// lands stale. Call when a node is removed or its history is rewritten
// outside the engine.
func (e *Engine) Invalidate(nodeID string) {
	e.mu.Lock()
	e.seq[nodeID]++
	e.mu.Unlock()
}

func (e *Engine) acquire(nodeID string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[nodeID] {
		return 0, ErrBusy
	}
	e.inflight[nodeID] = true
	return e.seq[nodeID], nil
}

func (e *Engine) release(nodeID string) {
	e.mu.Lock()
	delete(e.inflight, nodeID)
	e.mu.Unlock()
}
