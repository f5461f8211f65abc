/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"testing"

	"blockcanvas/internal/store"
	"blockcanvas/internal/viewport"
)

type recordingInvalidator struct{ ids []string }

func (r *recordingInvalidator) Invalidate(id string) { r.ids = append(r.ids, id) }

func newTestSurface(t *testing.T) (*Surface, *store.Store, *recordingInvalidator) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	inval := &recordingInvalidator{}
	return NewSurface(st, inval, viewport.Size{W: 800, H: 600}), st, inval
}

func TestEmptyProjectResetsCamera(t *testing.T) {
	s, _, _ := newTestSurface(t)
	if s.Camera() != viewport.Identity {
		t.Fatalf("camera = %+v, want identity", s.Camera())
	}
}

func TestDropTemplateSnapsAndSnapshots(t *testing.T) {
	s, st, _ := newTestSurface(t)
	tmpl := st.Current().Blocks[0]

	id, err := s.DropTemplate(tmpl.ID, viewport.Pt{X: 123, Y: 177})
	if err != nil {
		t.Fatalf("DropTemplate: %v", err)
	}
	n, ok := st.GetNode(s.ProjectID(), id)
	if !ok {
		t.Fatalf("node not stored")
	}
	// identity camera, so screen == world before snapping
	if n.X != 100 || n.Y != 200 {
		t.Fatalf("node at (%v,%v), want snapped (100,200)", n.X, n.Y)
	}
	if n.Config.SystemPrompt != tmpl.SystemPrompt {
		t.Fatalf("config not snapshotted")
	}

	// mutating the template later must not touch the placed node
	name := "Renamed"
	if err := st.UpdateBlock(s.ProjectID(), tmpl.ID, store.BlockPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateBlock: %v", err)
	}
	n, _ = st.GetNode(s.ProjectID(), id)
	if n.Config.Name != tmpl.Name {
		t.Fatalf("template edit leaked into placed node: %q", n.Config.Name)
	}
}

func TestDropUnknownTemplateIgnored(t *testing.T) {
	s, st, _ := newTestSurface(t)
	id, err := s.DropTemplate("ghost", viewport.Pt{X: 10, Y: 10})
	if err != nil || id != "" {
		t.Fatalf("unknown drop: id=%q err=%v", id, err)
	}
	if got := len(st.Current().Nodes); got != 0 {
		t.Fatalf("node count = %d", got)
	}
}

func TestDragNodeRespectsCamera(t *testing.T) {
	s, st, _ := newTestSurface(t)
	tmpl := st.Current().Blocks[0]
	id, _ := s.DropTemplate(tmpl.ID, viewport.Pt{X: 0, Y: 0})

	// zoom in a few notches somewhere off-origin, then drag
	s.Wheel(viewport.Pt{X: 400, Y: 300}, 4)
	at := viewport.Pt{X: 500, Y: 420}
	s.DragNode(id, at)

	n, _ := st.GetNode(s.ProjectID(), id)
	want := viewport.Snap(s.Camera().ScreenToWorld(at))
	if n.X != want.X || n.Y != want.Y {
		t.Fatalf("node at (%v,%v), want %v", n.X, n.Y, want)
	}
}

func TestFitFramesNodes(t *testing.T) {
	s, st, _ := newTestSurface(t)
	tmpl := st.Current().Blocks[0]
	s.DropTemplate(tmpl.ID, viewport.Pt{X: 0, Y: 0})
	s.DropTemplate(tmpl.ID, viewport.Pt{X: 700, Y: 550})

	s.Fit()
	cam := s.Camera()
	if cam.Scale > 1 {
		t.Fatalf("fit zoomed in: %v", cam.Scale)
	}
	for _, n := range st.Current().Nodes {
		p := cam.WorldToScreen(viewport.Pt{X: n.X, Y: n.Y})
		if p.X < 0 || p.Y < 0 || p.X > 800 || p.Y > 600 {
			t.Fatalf("node corner off screen at %v", p)
		}
	}
}

func TestOverlayAnchorsUnderNode(t *testing.T) {
	s, st, _ := newTestSurface(t)
	tmpl := st.Current().Blocks[0]
	id, _ := s.DropTemplate(tmpl.ID, viewport.Pt{X: 200, Y: 100})

	p, ok := s.OverlayPosition(id)
	if !ok {
		t.Fatalf("overlay position missing")
	}
	n, _ := st.GetNode(s.ProjectID(), id)
	want := s.Camera().WorldToScreen(viewport.Pt{X: n.X, Y: n.Y + viewport.NodeHeight})
	if p != want {
		t.Fatalf("overlay at %v, want %v", p, want)
	}
	if _, ok := s.OverlayPosition("ghost"); ok {
		t.Fatalf("overlay for unknown node")
	}
}

func TestTwoPhaseNodeDeletion(t *testing.T) {
	s, st, inval := newTestSurface(t)
	tmpl := st.Current().Blocks[0]
	id, _ := s.DropTemplate(tmpl.ID, viewport.Pt{X: 0, Y: 0})

	// confirm without arming does nothing
	if s.ConfirmDeleteNode(id) {
		t.Fatalf("unarmed confirm deleted")
	}

	s.ArmDelete(id)
	if !s.DeleteArmed(id) {
		t.Fatalf("arming not visible")
	}
	// arming a different id replaces the pending one
	s.ArmDelete("other")
	if s.ConfirmDeleteNode(id) {
		t.Fatalf("confirm for replaced arming deleted")
	}

	s.ArmDelete(id)
	if !s.ConfirmDeleteNode(id) {
		t.Fatalf("armed confirm refused")
	}
	if _, ok := st.GetNode(s.ProjectID(), id); ok {
		t.Fatalf("node survived confirmed deletion")
	}
	if len(inval.ids) != 1 || inval.ids[0] != id {
		t.Fatalf("invalidator calls = %v", inval.ids)
	}
}

func TestConfirmDeleteProjectFallsBackToDefault(t *testing.T) {
	s, st, _ := newTestSurface(t)
	pid, err := st.CreateProject("Doomed")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	s.ShowProject(pid)

	s.ArmDelete(pid)
	if !s.ConfirmDeleteProject(pid) {
		t.Fatalf("confirm refused")
	}
	if s.ProjectID() == pid {
		t.Fatalf("surface still shows deleted project")
	}
	if !st.Current().IsDefault {
		t.Fatalf("session did not fall back to default")
	}
}

func TestDefaultProjectDeletionRefusedEndToEnd(t *testing.T) {
	s, st, _ := newTestSurface(t)
	defID := st.Current().ID
	s.ArmDelete(defID)
	s.ConfirmDeleteProject(defID)
	if _, ok := st.GetProject(defID); !ok {
		t.Fatalf("default project deleted through the surface")
	}
}
