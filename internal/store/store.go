/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store is the durable multi-project container behind the canvas.
// Every mutation persists the full workspace synchronously before the call
// returns; operations referencing unknown ids are silently ignored so stale
// ids from concurrent edits have no effect.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"blockcanvas/internal/domain"

	"github.com/google/uuid"
)

// ErrValidation wraps local validation failures that reject an operation
// before any state is touched.
var ErrValidation = errors.New("validation")

// Store owns the workspace state. All operations take explicit project ids;
// Current only resolves which project the session points at.
type Store struct {
	mu   sync.Mutex
	root string
	ws   domain.Workspace
	log  *slog.Logger
}

// Root returns the workspace directory this store persists into.
func (s *Store) Root() string { return s.root }

func (s *Store) findProject(id string) (*domain.Project, bool) {
	for i := range s.ws.Projects {
		if s.ws.Projects[i].ID == id {
			return &s.ws.Projects[i], true
		}
	}
	return nil, false
}

func (s *Store) defaultProject() *domain.Project {
	for i := range s.ws.Projects {
		if s.ws.Projects[i].IsDefault {
			return &s.ws.Projects[i]
		}
	}
	// a workspace always carries a default; guard anyway
	return &s.ws.Projects[0]
}

// ListProjects returns a copy of the project collection.
func (s *Store) ListProjects() []domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Project, len(s.ws.Projects))
	for i := range s.ws.Projects {
		out[i] = cloneProject(&s.ws.Projects[i])
	}
	return out
}

// Current returns the project the session points at.
func (s *Store) Current() domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(s.ws.CurrentID)
	if !ok {
		p = s.defaultProject()
	}
	return cloneProject(p)
}

// GetProject looks a project up by id.
func (s *Store) GetProject(id string) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(id)
	if !ok {
		return domain.Project{}, false
	}
	return cloneProject(p), true
}

// CreateProject appends a project seeded with the built-in templates and
// switches the session to it. An empty name is a validation error and
// mutates nothing.
func (s *Store) CreateProject(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: project name is required", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := newProject(name, false)
	s.ws.Projects = append(s.ws.Projects, p)
	s.ws.CurrentID = p.ID
	if err := s.persist(); err != nil {
		return "", err
	}
	s.log.Info("project created", slog.String("project", p.ID), slog.String("name", name))
	return p.ID, nil
}

// SwitchProject makes the named project current; unknown ids are ignored.
func (s *Store) SwitchProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findProject(id); !ok {
		s.log.Debug("switch to unknown project ignored", slog.String("project", id))
		return
	}
	s.ws.CurrentID = id
	if err := s.persist(); err != nil {
		s.log.Error("persist after switch failed", slog.Any("err", err))
	}
}

// DeleteProject removes a non-default project. Deleting the default is
// refused (logged, list unchanged); deleting the current project falls the
// session back to the default.
func (s *Store) DeleteProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(id)
	if !ok {
		return
	}
	if p.IsDefault {
		s.log.Warn("refusing to delete default project", slog.String("project", id))
		return
	}
	kept := s.ws.Projects[:0]
	for i := range s.ws.Projects {
		if s.ws.Projects[i].ID != id {
			kept = append(kept, s.ws.Projects[i])
		}
	}
	s.ws.Projects = kept
	if s.ws.CurrentID == id {
		s.ws.CurrentID = s.defaultProject().ID
	}
	if err := s.persist(); err != nil {
		s.log.Error("persist after delete failed", slog.Any("err", err))
	}
}

// AddNode assigns a fresh id and appends the node to the project. The
// template snapshot must already be on the node; the store does not consult
// the block catalog here.
func (s *Store) AddNode(projectID string, n domain.Node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return "", fmt.Errorf("project %s not found", projectID)
	}
	n.ID = uuid.NewString()
	if n.History == nil {
		n.History = []domain.StepRecord{}
	}
	p.Nodes = append(p.Nodes, n)
	if err := s.persist(); err != nil {
		return "", err
	}
	return n.ID, nil
}

// MoveNode updates a node's world position; unknown ids are ignored.
func (s *Store) MoveNode(projectID, nodeID string, x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return
	}
	for i := range p.Nodes {
		if p.Nodes[i].ID == nodeID {
			p.Nodes[i].X = x
			p.Nodes[i].Y = y
			if err := s.persist(); err != nil {
				s.log.Error("persist after move failed", slog.Any("err", err))
			}
			return
		}
	}
}

// ApplyStep appends a step record and replaces the node's schema as one
// durable mutation. History and schema are never observable half-applied.
// A missing node makes this a no-op (the node may have been deleted while
// the submission was in flight).
func (s *Store) ApplyStep(projectID, nodeID string, rec domain.StepRecord, next *domain.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return nil
	}
	for i := range p.Nodes {
		if p.Nodes[i].ID == nodeID {
			p.Nodes[i].History = append(p.Nodes[i].History, rec)
			p.Nodes[i].LastSchema = next
			return s.persist()
		}
	}
	return nil
}

// RemoveNode filters the node out; unknown ids are ignored.
func (s *Store) RemoveNode(projectID, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return
	}
	kept := p.Nodes[:0]
	removed := false
	for i := range p.Nodes {
		if p.Nodes[i].ID == nodeID {
			removed = true
			continue
		}
		kept = append(kept, p.Nodes[i])
	}
	p.Nodes = kept
	if removed {
		if err := s.persist(); err != nil {
			s.log.Error("persist after node removal failed", slog.Any("err", err))
		}
	}
}

// GetNode looks a node up by id within a project.
func (s *Store) GetNode(projectID, nodeID string) (domain.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return domain.Node{}, false
	}
	for i := range p.Nodes {
		if p.Nodes[i].ID == nodeID {
			return cloneNode(&p.Nodes[i]), true
		}
	}
	return domain.Node{}, false
}

// AddBlock validates and appends a template to the project catalog. Empty
// suggestions are filtered out first; at least one must survive.
func (s *Store) AddBlock(projectID string, b domain.BlockTemplate) (string, error) {
	if err := validateTemplate(&b); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return "", fmt.Errorf("project %s not found", projectID)
	}
	b.ID = uuid.NewString()
	b.IsBuiltIn = false
	p.Blocks = append(p.Blocks, b)
	if err := s.persist(); err != nil {
		return "", err
	}
	return b.ID, nil
}

// BlockPatch is a shallow merge into an existing template; nil fields are
// left alone.
type BlockPatch struct {
	Name          *string
	SystemPrompt  *string
	Description   *string
	FirstQuestion *string
	Suggestions   *[]string
	Category      *string
	Color         *string
}

// UpdateBlock shallow-merges the patch into the matching template. Unknown
// ids are ignored; a patch producing an invalid template is rejected before
// any mutation.
func (s *Store) UpdateBlock(projectID, blockID string, patch BlockPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return nil
	}
	for i := range p.Blocks {
		if p.Blocks[i].ID != blockID {
			continue
		}
		merged := p.Blocks[i]
		applyBlockPatch(&merged, patch)
		if err := validateTemplate(&merged); err != nil {
			return err
		}
		p.Blocks[i] = merged
		return s.persist()
	}
	return nil
}

// RemoveBlock deletes a template. Nodes already bound to it are untouched;
// they keep their config snapshot.
func (s *Store) RemoveBlock(projectID, blockID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return
	}
	kept := p.Blocks[:0]
	removed := false
	for i := range p.Blocks {
		if p.Blocks[i].ID == blockID {
			removed = true
			continue
		}
		kept = append(kept, p.Blocks[i])
	}
	p.Blocks = kept
	if removed {
		if err := s.persist(); err != nil {
			s.log.Error("persist after block removal failed", slog.Any("err", err))
		}
	}
}

// GetBlock looks a template up by id within a project.
func (s *Store) GetBlock(projectID, blockID string) (domain.BlockTemplate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findProject(projectID)
	if !ok {
		return domain.BlockTemplate{}, false
	}
	for i := range p.Blocks {
		if p.Blocks[i].ID == blockID {
			return p.Blocks[i], true
		}
	}
	return domain.BlockTemplate{}, false
}

func applyBlockPatch(b *domain.BlockTemplate, patch BlockPatch) {
	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.SystemPrompt != nil {
		b.SystemPrompt = *patch.SystemPrompt
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.FirstQuestion != nil {
		b.FirstQuestion = *patch.FirstQuestion
	}
	if patch.Suggestions != nil {
		b.Suggestions = append([]string(nil), (*patch.Suggestions)...)
	}
	if patch.Category != nil {
		b.Category = *patch.Category
	}
	if patch.Color != nil {
		b.Color = *patch.Color
	}
}

func validateTemplate(b *domain.BlockTemplate) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if strings.TrimSpace(b.SystemPrompt) == "" {
		return fmt.Errorf("%w: system prompt is required", ErrValidation)
	}
	if strings.TrimSpace(b.FirstQuestion) == "" {
		return fmt.Errorf("%w: first question is required", ErrValidation)
	}
	valid := b.Suggestions[:0:0]
	for _, sug := range b.Suggestions {
		if strings.TrimSpace(sug) != "" {
			valid = append(valid, sug)
		}
	}
	if len(valid) == 0 {
		return fmt.Errorf("%w: at least one non-empty suggestion is required", ErrValidation)
	}
	b.Suggestions = valid
	return nil
}

func cloneProject(p *domain.Project) domain.Project {
	out := *p
	out.Nodes = make([]domain.Node, len(p.Nodes))
	for i := range p.Nodes {
		out.Nodes[i] = cloneNode(&p.Nodes[i])
	}
	out.Blocks = append([]domain.BlockTemplate(nil), p.Blocks...)
	return out
}

func cloneNode(n *domain.Node) domain.Node {
	out := *n
	out.History = append([]domain.StepRecord(nil), n.History...)
	return out
}
