package domain

import (
	"encoding/json"
	"testing"
)

const sampleSchema = `{
	"properties": {
		"mood": {"type": "string", "title": "Mood"},
		"tempo": {"type": "integer", "title": "Tempo (BPM)", "minimum": 40},
		"genre": {"type": "string", "enum": ["pop", "rock", "folk"]},
		"hologram": {"type": "quantum-widget", "wobble": true}
	},
	"required": ["mood", "genre"],
	"ui": {"end": false, "submitLabel": "Next"},
	"x-service-tag": "v7"
}`

func mustSchema(t *testing.T, raw string) *Schema {
	t.Helper()
	var s Schema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	return &s
}

func TestSchemaDecodePreservesOrder(t *testing.T) {
	s := mustSchema(t, sampleSchema)
	want := []string{"mood", "tempo", "genre", "hologram"}
	got := s.Fields()
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fields = %v, want %v", got, want)
		}
	}
}

func TestSchemaFieldKinds(t *testing.T) {
	s := mustSchema(t, sampleSchema)
	cases := map[string]FieldKind{
		"mood":     FieldString,
		"tempo":    FieldInteger,
		"genre":    FieldEnum,
		"hologram": FieldOpaque,
	}
	for name, want := range cases {
		if got := s.Properties[name].Kind(); got != want {
			t.Errorf("%s: kind = %s, want %s", name, got, want)
		}
	}
}

func TestSchemaRoundTripKeepsUnknownKeys(t *testing.T) {
	s := mustSchema(t, sampleSchema)
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s2 := mustSchema(t, string(out))

	if _, ok := s2.Extra["x-service-tag"]; !ok {
		t.Errorf("top-level passthrough key lost in round trip")
	}
	if _, ok := s2.Properties["tempo"].Extra["minimum"]; !ok {
		t.Errorf("field-level passthrough key lost in round trip")
	}
	if _, ok := s2.Properties["hologram"].Extra["wobble"]; !ok {
		t.Errorf("opaque field attributes lost in round trip")
	}
	if got := s2.Fields(); got[0] != "mood" || got[3] != "hologram" {
		t.Errorf("field order lost in round trip: %v", got)
	}
	if !s2.IsRequired("genre") || s2.IsRequired("tempo") {
		t.Errorf("required set wrong after round trip: %v", s2.Required)
	}
	if s2.UI.SubmitLabel != "Next" {
		t.Errorf("ui hints lost: %+v", s2.UI)
	}
}

func TestNodePhase(t *testing.T) {
	n := Node{}
	if got := n.Phase(); got != PhaseFirstStep {
		t.Fatalf("fresh node phase = %s", got)
	}
	n.History = []StepRecord{{Answers: map[string]any{"customInput": "x"}}}
	n.LastSchema = mustSchema(t, sampleSchema)
	if got := n.Phase(); got != PhaseStepped {
		t.Fatalf("stepped node phase = %s", got)
	}
	n.LastSchema.UI.End = true
	if got := n.Phase(); got != PhaseCompleted {
		t.Fatalf("terminal node phase = %s", got)
	}
}

func TestTemplateSnapshotIsACopy(t *testing.T) {
	tpl := BuiltInTemplates()[0]
	cfg := tpl.Snapshot()
	cfg.Suggestions[0] = "mutated"
	if tpl.Suggestions[0] == "mutated" {
		t.Fatalf("snapshot shares suggestion backing array with template")
	}
	if cfg.Name != tpl.Name || cfg.FirstQuestion != tpl.FirstQuestion {
		t.Fatalf("snapshot fields not copied: %+v", cfg)
	}
}
