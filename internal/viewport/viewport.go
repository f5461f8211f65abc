/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

// Pure 2D camera math for the infinite canvas: world<->screen mapping,
// cursor-anchored zoom, and content fitting. Float values use float64 to
// keep repeated zoom steps stable.

import "math"

const (
	// ZoomStep is the scale factor applied per wheel notch.
	ZoomStep = 1.05
	// MinScale and MaxScale clamp the camera zoom.
	MinScale = 0.1
	MaxScale = 3.0
	// FitPadding is the world-space margin kept around content when fitting.
	FitPadding = 100.0
	// GridSize is the snap grid pitch in world units.
	GridSize = 50.0
	// NodeWidth and NodeHeight are the fixed footprint of a canvas node.
	NodeWidth  = 360.0
	NodeHeight = 320.0
)

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Size is a width/height pair.
type Size struct{ W, H float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt { return Pt{r.X + r.W, r.Y + r.H} }

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Transform is the camera: screen = world*Scale + Offset.
type Transform struct {
	Scale  float64
	Offset Pt
}

// Identity is the reset camera.
var Identity = Transform{Scale: 1}

// WorldToScreen maps a world point into screen coordinates.
func (t Transform) WorldToScreen(p Pt) Pt {
	return Pt{X: p.X*t.Scale + t.Offset.X, Y: p.Y*t.Scale + t.Offset.Y}
}

// ScreenToWorld inverts WorldToScreen. A zero scale is treated as identity
// so a malformed camera cannot divide by zero.
func (t Transform) ScreenToWorld(p Pt) Pt {
	s := t.Scale
	if s == 0 {
		s = 1
	}
	return Pt{X: (p.X - t.Offset.X) / s, Y: (p.Y - t.Offset.Y) / s}
}

// ZoomAt applies notches of wheel zoom anchored at the given screen point:
// the world point under the cursor stays under the cursor. Positive notches
// zoom in. The resulting scale is clamped to [MinScale, MaxScale].
func (t Transform) ZoomAt(anchor Pt, notches int) Transform {
	factor := math.Pow(ZoomStep, float64(notches))
	next := clampScale(t.Scale * factor)
	if next == t.Scale {
		return t
	}
	world := t.ScreenToWorld(anchor)
	return Transform{
		Scale:  next,
		Offset: Pt{X: anchor.X - world.X*next, Y: anchor.Y - world.Y*next},
	}
}

// Pan shifts the camera by a screen-space delta.
func (t Transform) Pan(dx, dy float64) Transform {
	t.Offset.X += dx
	t.Offset.Y += dy
	return t
}

// FitToContent frames the given world bounds inside a screen of the given
// size, padded by FitPadding on every side. Fitting never zooms in past 1:1
// and an empty bounds resets the camera.
func FitToContent(bounds Rect, screen Size) Transform {
	if bounds.W <= 0 && bounds.H <= 0 {
		return Identity
	}
	padded := Rect{
		X: bounds.X - FitPadding,
		Y: bounds.Y - FitPadding,
		W: bounds.W + 2*FitPadding,
		H: bounds.H + 2*FitPadding,
	}
	scale := 1.0
	if padded.W > 0 && padded.H > 0 && screen.W > 0 && screen.H > 0 {
		scale = math.Min(screen.W/padded.W, screen.H/padded.H)
	}
	if scale > 1 {
		scale = 1
	}
	scale = clampScale(scale)
	// center the padded bounds on screen
	cx := padded.X + padded.W/2
	cy := padded.Y + padded.H/2
	return Transform{
		Scale:  scale,
		Offset: Pt{X: screen.W/2 - cx*scale, Y: screen.H/2 - cy*scale},
	}
}

// Snap rounds a world point to the nearest grid intersection.
func Snap(p Pt) Pt {
	return Pt{
		X: math.Round(p.X/GridSize) * GridSize,
		Y: math.Round(p.Y/GridSize) * GridSize,
	}
}

// NodeBounds returns the world-space footprint of a node at the given
// top-left position.
func NodeBounds(pos Pt) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: NodeWidth, H: NodeHeight}
}

// ContentBounds unions the footprints of all node positions. The boolean is
// false when there are no nodes.
func ContentBounds(positions []Pt) (Rect, bool) {
	if len(positions) == 0 {
		return Rect{}, false
	}
	b := NodeBounds(positions[0])
	for _, p := range positions[1:] {
		b = b.Union(NodeBounds(p))
	}
	return b, true
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}
