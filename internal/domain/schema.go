/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Schema is the declarative form description supplied by the remote schema
// service after each step. The system only interprets properties, required
// and ui; everything else rides along untouched in Extra so unknown schema
// features survive a store round trip instead of being dropped.
type Schema struct {
	Properties map[string]FieldSpec
	Required   []string
	UI         UIHints

	// FieldOrder preserves the property order of the wire form so the
	// renderer lays controls out the way the service authored them.
	FieldOrder []string

	// Extra carries top-level keys this system does not interpret.
	Extra map[string]json.RawMessage
}

// UIHints are the presentation hints the system reads from a schema.
type UIHints struct {
	End         bool   `json:"end"`
	SubmitLabel string `json:"submitLabel,omitempty"`
}

// FieldKind classifies a field spec into the widget families the form
// renderer understands. Unrecognized types degrade to FieldOpaque rather
// than failing the whole form.
type FieldKind string

const (
	FieldString  FieldKind = "string"
	FieldNumber  FieldKind = "number"
	FieldInteger FieldKind = "integer"
	FieldBoolean FieldKind = "boolean"
	FieldEnum    FieldKind = "enum"
	FieldOpaque  FieldKind = "opaque"
)

// FieldSpec describes a single form field. Known attributes are lifted into
// struct fields; the rest is kept verbatim in Extra.
type FieldSpec struct {
	Type        string
	Title       string
	Description string
	Enum        []string
	Extra       map[string]json.RawMessage
}

// Kind maps the wire type (plus an enum list, which wins over type) onto a
// renderer widget family.
func (f FieldSpec) Kind() FieldKind {
	if len(f.Enum) > 0 {
		return FieldEnum
	}
	switch f.Type {
	case "string":
		return FieldString
	case "number":
		return FieldNumber
	case "integer":
		return FieldInteger
	case "boolean":
		return FieldBoolean
	default:
		return FieldOpaque
	}
}

// Fields returns property names in authored order, falling back to a sorted
// listing when order information is unavailable.
func (s *Schema) Fields() []string {
	if len(s.FieldOrder) == len(s.Properties) {
		return append([]string(nil), s.FieldOrder...)
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRequired reports whether a property is listed in the schema's required set.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

var fieldSpecKnown = map[string]bool{
	"type": true, "title": true, "description": true, "enum": true,
}

func (f *FieldSpec) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("field spec: %w", err)
	}
	*f = FieldSpec{}
	if v, ok := raw["type"]; ok {
		_ = json.Unmarshal(v, &f.Type)
	}
	if v, ok := raw["title"]; ok {
		_ = json.Unmarshal(v, &f.Title)
	}
	if v, ok := raw["description"]; ok {
		_ = json.Unmarshal(v, &f.Description)
	}
	if v, ok := raw["enum"]; ok {
		_ = json.Unmarshal(v, &f.Enum)
	}
	for k, v := range raw {
		if fieldSpecKnown[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = map[string]json.RawMessage{}
		}
		f.Extra[k] = v
	}
	return nil
}

func (f FieldSpec) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range f.Extra {
		out[k] = v
	}
	if f.Type != "" {
		out["type"] = f.Type
	}
	if f.Title != "" {
		out["title"] = f.Title
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		out["enum"] = f.Enum
	}
	return json.Marshal(out)
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	*s = Schema{}
	if v, ok := raw["properties"]; ok {
		if err := json.Unmarshal(v, &s.Properties); err != nil {
			return fmt.Errorf("schema properties: %w", err)
		}
		order, err := objectKeyOrder(v)
		if err != nil {
			return fmt.Errorf("schema property order: %w", err)
		}
		s.FieldOrder = order
	}
	if v, ok := raw["required"]; ok {
		if err := json.Unmarshal(v, &s.Required); err != nil {
			return fmt.Errorf("schema required: %w", err)
		}
	}
	if v, ok := raw["ui"]; ok {
		if err := json.Unmarshal(v, &s.UI); err != nil {
			return fmt.Errorf("schema ui: %w", err)
		}
	}
	for k, v := range raw {
		switch k {
		case "properties", "required", "ui":
			continue
		}
		if s.Extra == nil {
			s.Extra = map[string]json.RawMessage{}
		}
		s.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes properties back in authored order so persisted schemas
// round-trip without reshuffling.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"properties":{`)
	for i, name := range s.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		nb, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		fb, err := json.Marshal(s.Properties[name])
		if err != nil {
			return nil, err
		}
		buf.Write(nb)
		buf.WriteByte(':')
		buf.Write(fb)
	}
	buf.WriteString(`},"required":`)
	req := s.Required
	if req == nil {
		req = []string{}
	}
	rb, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	buf.Write(rb)
	buf.WriteString(`,"ui":`)
	ub, err := json.Marshal(s.UI)
	if err != nil {
		return nil, err
	}
	buf.Write(ub)
	extras := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	for _, k := range extras {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(s.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// objectKeyOrder returns the top-level keys of a JSON object in wire order.
func objectKeyOrder(b []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys, err
		}
		key, ok := tok.(string)
		if !ok {
			return keys, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		// consume the value wholesale
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return keys, err
		}
	}
	return keys, nil
}
