/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"blockcanvas/internal/domain"
	"blockcanvas/internal/viewport"
)

// WriteCanvasPNG renders the project's node layout into a PNG at outPath.
// The image frames all content at 1:1 world scale with the standard fit
// padding; an empty project is an error rather than a blank image.
func WriteCanvasPNG(p *domain.Project, outPath string) error {
	if p == nil {
		return fmt.Errorf("project is required")
	}
	positions := make([]viewport.Pt, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		positions = append(positions, viewport.Pt{X: n.X, Y: n.Y})
	}
	bounds, ok := viewport.ContentBounds(positions)
	if !ok {
		return fmt.Errorf("nothing to export")
	}

	minX := bounds.X - viewport.FitPadding
	minY := bounds.Y - viewport.FitPadding
	w := int(bounds.W + 2*viewport.FitPadding)
	h := int(bounds.H + 2*viewport.FitPadding)

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	ttfFont, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	titleFace := truetype.NewFace(ttfFont, &truetype.Options{Size: 16, DPI: 72, Hinting: font.HintingFull})
	bodyFace := truetype.NewFace(ttfFont, &truetype.Options{Size: 12, DPI: 72, Hinting: font.HintingFull})

	for _, n := range p.Nodes {
		x := n.X - minX
		y := n.Y - minY
		drawNode(dc, &n, x, y, titleFace, bodyFace)
	}

	return dc.SavePNG(outPath)
}

func drawNode(dc *gg.Context, n *domain.Node, x, y float64, titleFace, bodyFace font.Face) {
	accent := parseHexColor(n.Config.Color, color.RGBA{R: 0x4f, G: 0x46, B: 0xe5, A: 0xff})

	// card
	dc.SetColor(color.White)
	dc.DrawRoundedRectangle(x, y, viewport.NodeWidth, viewport.NodeHeight, 12)
	dc.Fill()
	dc.SetColor(color.RGBA{R: 0xd0, G: 0xd0, B: 0xd8, A: 0xff})
	dc.SetLineWidth(1.5)
	dc.DrawRoundedRectangle(x, y, viewport.NodeWidth, viewport.NodeHeight, 12)
	dc.Stroke()

	// accent bar
	dc.SetColor(accent)
	dc.DrawRectangle(x, y, viewport.NodeWidth, 6)
	dc.Fill()

	dc.SetFontFace(titleFace)
	dc.SetColor(color.Black)
	dc.DrawString(n.Config.Name, x+16, y+34)

	dc.SetFontFace(bodyFace)
	dc.SetColor(color.RGBA{R: 0x50, G: 0x50, B: 0x58, A: 0xff})
	dc.DrawString(phaseLabel(n), x+16, y+56)
	dc.DrawString(fmt.Sprintf("%d step(s) recorded", len(n.History)), x+16, y+74)
}

func phaseLabel(n *domain.Node) string {
	switch n.Phase() {
	case domain.PhaseCompleted:
		return "Completed"
	case domain.PhaseStepped:
		return "In progress"
	default:
		return "Not started"
	}
}

// parseHexColor parses "#rrggbb"; anything else yields the fallback.
func parseHexColor(s string, fallback color.RGBA) color.RGBA {
	if len(s) != 7 || s[0] != '#' {
		return fallback
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
