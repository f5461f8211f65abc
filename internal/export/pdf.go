/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders project state into shareable artifacts: a PDF
// transcript replaying a node's form history, and a PNG snapshot of the
// canvas layout.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"blockcanvas/internal/domain"
)

// PDFOptions controls transcript export behavior. Units are points.
type PDFOptions struct {
	Title string
	// IncludeRaw appends each step's schema as an indented JSON block.
	IncludeRaw bool
}

// WriteTranscriptPDF replays a node's step history into a PDF at outPath.
// Built-in Helvetica keeps text vector without embedding.
func WriteTranscriptPDF(p *domain.Project, n *domain.Node, outPath string, opt PDFOptions) error {
	if p == nil || n == nil {
		return fmt.Errorf("project and node are required")
	}
	title := opt.Title
	if title == "" {
		title = fmt.Sprintf("%s — %s", p.Name, n.Config.Name)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Block Canvas", false)
	pdf.SetMargins(54, 54, 54)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 24, title, "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 14, fmt.Sprintf("Template: %s", n.Config.Name), "", "L", false)
	if n.Config.Description != "" {
		pdf.MultiCell(0, 14, n.Config.Description, "", "L", false)
	}
	pdf.Ln(10)

	for i, rec := range n.History {
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 18, fmt.Sprintf("Step %d", i+1), "", "L", false)

		question := stepQuestion(n, i, rec)
		if question != "" {
			pdf.SetFont("Helvetica", "I", 11)
			pdf.SetTextColor(80, 80, 80)
			pdf.MultiCell(0, 15, question, "", "L", false)
		}

		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
		for _, line := range answerLines(rec.Answers) {
			pdf.MultiCell(0, 15, line, "", "L", false)
		}
		if opt.IncludeRaw && rec.Schema != nil {
			if raw, err := json.MarshalIndent(rec.Schema, "", "  "); err == nil {
				pdf.SetFont("Courier", "", 8)
				pdf.SetTextColor(80, 80, 80)
				pdf.MultiCell(0, 10, string(raw), "", "L", false)
			}
		}
		pdf.Ln(8)
	}

	if n.Phase() == domain.PhaseCompleted {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(0, 14, "Conversation completed.", "", "L", false)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write transcript pdf: %w", err)
	}
	return nil
}

// stepQuestion picks a human heading for a step: the template's first
// question for step one, otherwise the titles of the schema the step
// answered.
func stepQuestion(n *domain.Node, idx int, rec domain.StepRecord) string {
	if idx == 0 {
		return n.Config.FirstQuestion
	}
	if rec.Schema == nil {
		return ""
	}
	var titles []string
	for _, name := range rec.Schema.Fields() {
		spec := rec.Schema.Properties[name]
		if spec.Title != "" {
			titles = append(titles, spec.Title)
		}
	}
	return strings.Join(titles, " / ")
}

// answerLines flattens an answers object into readable "key: value" lines
// with stable key order.
func answerLines(answers map[string]any) []string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, formatAnswer(answers[k])))
	}
	return out
}

func formatAnswer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, formatAnswer(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
