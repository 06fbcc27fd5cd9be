package validate

import (
	"strings"
	"testing"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
)

func panel(overrides map[string]any) map[string]any {
	p := map[string]any{
		"action":                "Wes chops onions",
		"composition":           "medium shot",
		"camera":                "eye level",
		"key_objects":           []any{"knife", "board"},
		"narration":             "Dinner prep begins.",
		"assistant_action":      "hums quietly",
		"assistant_presence":    "must_show",
		"assistant_position":    "over the counter",
		"assistant_scale":       "small",
		"assistant_interaction": "watching",
	}
	for k, v := range overrides {
		if v == nil {
			delete(p, k)
			continue
		}
		p[k] = v
	}
	return p
}

func doc(panels ...map[string]any) bundle.ModelOutput {
	items := make([]any, len(panels))
	for i, p := range panels {
		items[i] = p
	}
	return bundle.Parsed(map[string]any{"panels": items})
}

func compliant() []map[string]any {
	return []map[string]any{
		panel(map[string]any{"assistant_action": `says "Need a timer?"`}),
		panel(nil),
		panel(nil),
		panel(nil),
	}
}

func TestValidateAcceptsMinimalCompliantSet(t *testing.T) {
	ok, reason := Validate(doc(compliant()...))
	if !ok || reason != OK {
		t.Fatalf("got %v %q", ok, reason)
	}
}

func TestValidateRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(ps []map[string]any) []map[string]any
		want   string
	}{
		{"three panels", func(ps []map[string]any) []map[string]any { return ps[:3] }, ReasonPanelCount},
		{"missing camera", func(ps []map[string]any) []map[string]any {
			delete(ps[2], "camera")
			return ps
		}, ReasonMissingField},
		{"empty narration", func(ps []map[string]any) []map[string]any {
			ps[1]["narration"] = ""
			return ps
		}, ReasonMissingField},
		{"presence optional", func(ps []map[string]any) []map[string]any {
			ps[3]["assistant_presence"] = "optional"
			return ps
		}, ReasonAssistant},
		{"inside a screen", func(ps []map[string]any) []map[string]any {
			ps[1]["action"] = "Wes stares at the phone SCREEN"
			return ps
		}, ReasonAssistant},
		{"no spoken line", func(ps []map[string]any) []map[string]any {
			ps[0]["assistant_action"] = "nods"
			return ps
		}, ReasonDialogue},
		{"missing field wins over presence", func(ps []map[string]any) []map[string]any {
			ps[0]["assistant_presence"] = "hidden"
			delete(ps[3], "assistant_scale")
			return ps
		}, ReasonMissingField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := Validate(doc(tc.mutate(compliant())...))
			if ok || reason != tc.want {
				t.Fatalf("got %v %q want %q", ok, reason, tc.want)
			}
		})
	}
}

func TestValidateAcceptsWhitespaceOnlyText(t *testing.T) {
	ps := compliant()
	ps[1]["narration"] = " "
	ps[2]["camera"] = "\t"
	if ok, reason := Validate(doc(ps...)); !ok {
		t.Fatalf("whitespace text is a present field, got %q", reason)
	}
}

func TestValidateUnparsed(t *testing.T) {
	if ok, reason := Validate(bundle.Unparsed("oops")); ok || reason != ReasonPanelCount {
		t.Fatalf("got %v %q", ok, reason)
	}
}

func TestValidateSpeechMarks(t *testing.T) {
	for _, line := range []string{"“Ready”", "Ready?", "Go!", `"hi"`} {
		ps := compliant()
		ps[0]["assistant_action"] = line
		if ok, _ := Validate(doc(ps...)); !ok {
			t.Fatalf("%q should count as dialogue", line)
		}
	}
}

func TestRepairPrompt(t *testing.T) {
	ps := compliant()
	ps[2]["assistant_presence"] = "hidden"
	persona := map[string]any{"summary": "calm"}
	scenario := map[string]any{"activity": "cook"}

	got, err := RepairPrompt(doc(ps...), "TEMPLATE", persona, scenario)
	if err != nil {
		t.Fatalf("RepairPrompt: %v", err)
	}
	want := "TEMPLATE\n\n---\nThe previous output violated constraints:\n- " + ReasonAssistant +
		"\n\nPlease regenerate a corrected JSON that strictly follows the OUTPUT SCHEMA and all rules." +
		"\n\nPersona Style to consider:\n{\n  \"summary\": \"calm\"\n}" +
		"\n\nContext Scenario:\n{\n  \"activity\": \"cook\"\n}"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	valid, err := RepairPrompt(doc(compliant()...), "TEMPLATE", persona, scenario)
	if err != nil {
		t.Fatalf("RepairPrompt: %v", err)
	}
	if strings.Contains(valid, "TEMPLATE") || !strings.HasPrefix(valid, "{\n  \"panels\"") {
		t.Fatalf("valid doc should come back as JSON: %s", valid)
	}
}
