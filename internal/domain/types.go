/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for the block canvas: workspaces of
// projects, reusable block templates, and placed nodes carrying their own
// guided-conversation state. Everything serializes to a human-readable JSON
// workspace file.

// Workspace is the durable root: all projects plus the id of the project
// that is current for the session.
type Workspace struct {
	Projects  []Project `json:"projects"`
	CurrentID string    `json:"currentId"`
}

// Project is an isolated canvas with its own nodes and template catalog.
// Exactly one project in a workspace has IsDefault set; it can never be
// deleted and is the fallback when the current project goes away.
type Project struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Nodes     []Node          `json:"nodes"`
	Blocks    []BlockTemplate `json:"blocks"`
	IsDefault bool            `json:"isDefault"`
}

// BlockTemplate is a reusable definition of a guided conversation's opening
// behavior. Built-in templates are seeded into every new project.
type BlockTemplate struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	SystemPrompt  string   `json:"systemPrompt"`
	Description   string   `json:"description,omitempty"`
	FirstQuestion string   `json:"firstQuestion"`
	Suggestions   []string `json:"suggestions"`
	Category      string   `json:"category,omitempty"`
	Color         string   `json:"color,omitempty"`
	IsBuiltIn     bool     `json:"isBuiltIn,omitempty"`
}

// NodeConfig is the template snapshot copied onto a node at placement time.
// Later template edits never alter placed nodes; a node whose template was
// deleted keeps working off this snapshot.
type NodeConfig struct {
	Name          string   `json:"name"`
	SystemPrompt  string   `json:"systemPrompt"`
	Description   string   `json:"description,omitempty"`
	FirstQuestion string   `json:"firstQuestion"`
	Suggestions   []string `json:"suggestions"`
}

// Node is a placed template instance on the canvas. Position is in world
// coordinates. History is append-only; LastSchema is replaced wholesale on
// each successful step transition.
type Node struct {
	ID         string       `json:"id"`
	BlockID    string       `json:"blockId"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	History    []StepRecord `json:"history"`
	LastSchema *Schema      `json:"lastSchema"`
	Config     NodeConfig   `json:"config"`
}

// StepRecord pairs the answers the user submitted with the schema that was
// active when they submitted them (nil on the first step). Replaying
// history[i].Schema then history[i].Answers reconstructs the transcript.
type StepRecord struct {
	Answers map[string]any `json:"answers"`
	Schema  *Schema        `json:"schema"`
}

// NodePhase is the lifecycle phase of a node's conversation.
type NodePhase string

const (
	// PhaseFirstStep: no history yet; the fixed first-step form applies.
	PhaseFirstStep NodePhase = "first_step"
	// PhaseStepped: at least one transition done, schema-driven form active.
	PhaseStepped NodePhase = "stepped"
	// PhaseCompleted: the service marked the last schema as terminal.
	PhaseCompleted NodePhase = "completed"
)

// Phase derives the conversation phase from durable node state. The
// transient in-flight state lives in the engine, not here.
func (n *Node) Phase() NodePhase {
	if len(n.History) == 0 {
		return PhaseFirstStep
	}
	if n.LastSchema != nil && n.LastSchema.UI.End {
		return PhaseCompleted
	}
	return PhaseStepped
}

// Snapshot returns the config copy taken from a template at placement time.
func (t BlockTemplate) Snapshot() NodeConfig {
	return NodeConfig{
		Name:          t.Name,
		SystemPrompt:  t.SystemPrompt,
		Description:   t.Description,
		FirstQuestion: t.FirstQuestion,
		Suggestions:   append([]string(nil), t.Suggestions...),
	}
}
