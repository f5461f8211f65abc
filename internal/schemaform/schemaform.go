/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schemaform turns a remote form schema into a renderable control
// list and validates collected answers against it. Rendering itself lives in
// the ui layer; this package is the data contract between schema and form.
package schemaform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"blockcanvas/internal/domain"
)

// ControlKind selects the widget a field renders as.
type ControlKind int

const (
	ControlText ControlKind = iota
	ControlNumber
	ControlCheckbox
	ControlSelect
	// ControlRaw renders a read-only JSON view for field types the renderer
	// does not recognize; unknown fields are shown, never dropped.
	ControlRaw
)

// Control is one renderable form entry, in schema order.
type Control struct {
	Name     string
	Kind     ControlKind
	Label    string
	Help     string
	Options  []string
	Required bool
}

// Controls maps a schema to its ordered control list. A nil schema yields an
// empty form.
func Controls(s *domain.Schema) []Control {
	if s == nil {
		return nil
	}
	var out []Control
	for _, name := range s.Fields() {
		spec := s.Properties[name]
		c := Control{
			Name:     name,
			Label:    spec.Title,
			Help:     spec.Description,
			Required: s.IsRequired(name),
		}
		if c.Label == "" {
			c.Label = name
		}
		switch spec.Kind() {
		case domain.FieldEnum:
			c.Kind = ControlSelect
			c.Options = append([]string(nil), spec.Enum...)
		case domain.FieldString:
			c.Kind = ControlText
		case domain.FieldNumber, domain.FieldInteger:
			c.Kind = ControlNumber
		case domain.FieldBoolean:
			c.Kind = ControlCheckbox
		default:
			c.Kind = ControlRaw
		}
		out = append(out, c)
	}
	return out
}

// Validate checks collected answers against the schema's required list.
// Required fields must be present and non-empty; everything else passes
// through untouched. Returned field names are sorted for stable messages.
func Validate(s *domain.Schema, answers map[string]any) error {
	if s == nil {
		return nil
	}
	var missing []string
	for _, name := range s.Required {
		v, ok := answers[name]
		if !ok || isEmptyAnswer(v) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("required fields missing: %s", strings.Join(missing, ", "))
}

func isEmptyAnswer(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// FirstStepInput is what the built-in first-step form collects before any
// remote schema exists: template suggestions toggled on, free text, and a
// comma-separated quick selection of suggestion numbers.
type FirstStepInput struct {
	Selected       []string
	CustomInput    string
	QuickSelection string
}

// ComposeFirstStepAnswers builds the composite first-step answers object.
// The three inputs travel side by side: checked suggestions, trimmed free
// text, and the quick-selection string exactly as typed. The service alone
// decides how the combination is interpreted.
func ComposeFirstStepAnswers(in FirstStepInput) map[string]any {
	return map[string]any{
		"selectedOptions": append([]string(nil), in.Selected...),
		"customInput":     strings.TrimSpace(in.CustomInput),
		"quickSelection":  in.QuickSelection,
	}
}

// ParseQuickSelection parses a comma-separated list of 1-based suggestion
// numbers ("1, 3,5") into 0-based indexes, for highlighting the matching
// suggestions while the user types. It never feeds into the submitted
// answers. Entries that are not numbers or fall outside [1, n] are ignored;
// duplicates collapse.
func ParseQuickSelection(raw string, n int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		num, err := strconv.Atoi(part)
		if err != nil || num < 1 || num > n {
			continue
		}
		idx := num - 1
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}
