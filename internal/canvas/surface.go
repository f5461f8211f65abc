/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas is the interaction surface over the project store: it maps
// pointer gestures in screen space onto store mutations in world space and
// owns the camera. It renders nothing itself; the ui layer draws from the
// state exposed here.
package canvas

import (
	"log/slog"

	"blockcanvas/internal/domain"
	applog "blockcanvas/internal/log"
	"blockcanvas/internal/store"
	"blockcanvas/internal/viewport"
)

// Invalidator is notified when a node is removed so in-flight submissions
// for it can be discarded.
type Invalidator interface {
	Invalidate(nodeID string)
}

// Surface is the camera plus gesture handling for one project at a time.
type Surface struct {
	store     *store.Store
	inval     Invalidator
	log       *slog.Logger
	projectID string
	screen    viewport.Size
	camera    viewport.Transform

	// pendingDelete holds the id armed for two-phase deletion; the second
	// confirm call within the same arming actually deletes.
	pendingDelete string
}

// NewSurface builds a surface over the store's current project. inval may
// be nil when no engine is attached.
func NewSurface(st *store.Store, inval Invalidator, screen viewport.Size) *Surface {
	s := &Surface{
		store:  st,
		inval:  inval,
		log:    applog.WithComponent("canvas"),
		screen: screen,
	}
	s.ShowProject(st.Current().ID)
	return s
}

// Camera returns the current view transform.
func (s *Surface) Camera() viewport.Transform { return s.camera }

// ProjectID returns the project the surface is showing.
func (s *Surface) ProjectID() string { return s.projectID }

// Resize records a new screen size. The camera is kept; callers may Fit
// afterwards if they want reframing.
func (s *Surface) Resize(screen viewport.Size) { s.screen = screen }

// ShowProject switches the surface to another project and reframes the
// camera around its content. Unknown ids fall back to the store's current
// project.
func (s *Surface) ShowProject(projectID string) {
	p, ok := s.store.GetProject(projectID)
	if !ok {
		p = s.store.Current()
	}
	s.projectID = p.ID
	s.pendingDelete = ""
	s.Fit()
}

// Fit reframes the camera around all nodes of the shown project. An empty
// project resets the camera.
func (s *Surface) Fit() {
	p, ok := s.store.GetProject(s.projectID)
	if !ok {
		s.camera = viewport.Identity
		return
	}
	positions := make([]viewport.Pt, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		positions = append(positions, viewport.Pt{X: n.X, Y: n.Y})
	}
	bounds, ok := viewport.ContentBounds(positions)
	if !ok {
		s.camera = viewport.Identity
		return
	}
	s.camera = viewport.FitToContent(bounds, s.screen)
}

// Wheel applies cursor-anchored zoom notches at a screen point.
func (s *Surface) Wheel(at viewport.Pt, notches int) {
	s.camera = s.camera.ZoomAt(at, notches)
}

// Pan shifts the camera by a screen-space drag delta.
func (s *Surface) Pan(dx, dy float64) {
	s.camera = s.camera.Pan(dx, dy)
}

// DropTemplate places a new node for the given template at a screen drop
// point. The position is snapped to the grid and the template's config is
// snapshotted onto the node so later template edits leave placed nodes
// alone.
func (s *Surface) DropTemplate(blockID string, at viewport.Pt) (string, error) {
	tmpl, ok := s.store.GetBlock(s.projectID, blockID)
	if !ok {
		s.log.Debug("drop of unknown template ignored", slog.String("block", blockID))
		return "", nil
	}
	world := viewport.Snap(s.camera.ScreenToWorld(at))
	return s.store.AddNode(s.projectID, domain.Node{
		BlockID: blockID,
		X:       world.X,
		Y:       world.Y,
		Config:  tmpl.Snapshot(),
	})
}

// DragNode moves a node to a new screen point, snapping to the grid.
func (s *Surface) DragNode(nodeID string, at viewport.Pt) {
	world := viewport.Snap(s.camera.ScreenToWorld(at))
	s.store.MoveNode(s.projectID, nodeID, world.X, world.Y)
}

// OverlayPosition returns the screen point where a node's form overlay
// anchors: directly under the node's footprint.
func (s *Surface) OverlayPosition(nodeID string) (viewport.Pt, bool) {
	n, ok := s.store.GetNode(s.projectID, nodeID)
	if !ok {
		return viewport.Pt{}, false
	}
	return s.camera.WorldToScreen(viewport.Pt{X: n.X, Y: n.Y + viewport.NodeHeight}), true
}

// ArmDelete marks an id (node, block, or project) for deletion. The next
// ConfirmDelete for the same id performs it; arming a different id replaces
// the pending one.
func (s *Surface) ArmDelete(id string) {
	s.pendingDelete = id
}

// DeleteArmed reports whether the given id is armed for deletion.
func (s *Surface) DeleteArmed(id string) bool { return s.pendingDelete == id }

// DisarmDelete clears any pending deletion.
func (s *Surface) DisarmDelete() { s.pendingDelete = "" }

// ConfirmDeleteNode removes the node if it is the armed id, and tells the
// invalidator so an in-flight submission for it is discarded.
func (s *Surface) ConfirmDeleteNode(nodeID string) bool {
	if s.pendingDelete != nodeID {
		return false
	}
	s.pendingDelete = ""
	if s.inval != nil {
		s.inval.Invalidate(nodeID)
	}
	s.store.RemoveNode(s.projectID, nodeID)
	return true
}

// ConfirmDeleteBlock removes the template if it is the armed id. Placed
// nodes keep their config snapshots.
func (s *Surface) ConfirmDeleteBlock(blockID string) bool {
	if s.pendingDelete != blockID {
		return false
	}
	s.pendingDelete = ""
	s.store.RemoveBlock(s.projectID, blockID)
	return true
}

// ConfirmDeleteProject removes the project if it is the armed id, then
// re-shows whatever project the store considers current.
func (s *Surface) ConfirmDeleteProject(projectID string) bool {
	if s.pendingDelete != projectID {
		return false
	}
	s.pendingDelete = ""
	s.store.DeleteProject(projectID)
	s.ShowProject(s.store.Current().ID)
	return true
}
