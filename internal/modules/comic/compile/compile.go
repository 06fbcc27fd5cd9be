// Package compile flattens a section bundle into the single text prompt sent
// to the image model.
package compile

import (
	"fmt"
	"strings"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
)

const (
	maxPanels     = 4
	maxKeyObjects = 6
)

var layoutRules = []string{
	"Render a single clean 2x2 comic grid (equal-size panels, thin gutters).",
	"NO bottom captions, NO subtitles, NO text outside panels.",
	"All visible text must appear ONLY inside speech bubbles.",
	"Do NOT draw narration text, labels, or floating descriptions inside backgrounds.",
	"Avoid background posters, signs, UI screens with readable text.",
}

var assistantRules = []string{
	"Smart assistant: exactly ONE per panel. " +
		"A small floating blue orb with a VERY CLEAR emoji face: " +
		"two solid dark round eyes + one curved smiling mouth. " +
		"Face must be crisp, high-contrast, not blurred, not washed out by glow.",
	"The assistant must float beside the user, never inside screens. " +
		"Glow must NOT obscure facial features.",
	"Never draw multiple assistant orbs in one panel.",
}

// BuiltinNegativeCues are appended after the cues of sections 5 and 2.
var BuiltinNegativeCues = []string{
	"assistant inside screen",
	"multiple assistants",
	"blurred emoji face",
	"glow hiding facial features",
	"background text",
	"bottom subtitles",
	"floating narration text",
}

// Slots names the grid positions in panel order.
var Slots = []string{
	"Top-left panel (Panel 1)",
	"Top-right panel (Panel 2)",
	"Bottom-left panel (Panel 3)",
	"Bottom-right panel (Panel 4)",
}

// Compile is deterministic: the same bundle always yields the same text.
// Missing fields render as empty strings or their documented defaults.
func Compile(b bundle.SectionBundle) string {
	s1 := b.DrawingStyleObject()
	s2 := b.PanelDesignStyleObject()
	s4 := b.PersonaStyle.Object()
	s5 := b.Activity.Object()

	out := make([]string, 0, 32)
	out = append(out, layoutRules...)
	out = append(out,
		"Drawing style: "+field(s1, "style_summary"),
		"Color palette: "+field(s1, "color_palette"),
		"Lighting: "+field(s1, "lighting"),
		"Line quality: "+field(s1, "line_quality"),
		"Persona tone: "+field(s4, "summary"),
	)
	out = append(out, assistantRules...)
	out = append(out, "Avoid: "+strings.Join(NegativeCues(s5, s2), ", ")+".")

	panels := b.Activity.Panels()
	if len(panels) > maxPanels {
		panels = panels[:maxPanels]
	}
	for i, p := range panels {
		out = append(out, panelSentences(Slots[i], p)...)
	}
	return strings.Join(out, " ")
}

// NegativeCues merges the cue lists of sections 5 and 2 with the built-ins,
// keeping the first occurrence of each cue.
func NegativeCues(s5, s2 map[string]any) []string {
	var all []string
	for _, v := range bundle.List(s5["negative_cues"]) {
		all = append(all, bundle.Text(v))
	}
	for _, v := range bundle.List(s2["negative_cues"]) {
		all = append(all, bundle.Text(v))
	}
	all = append(all, BuiltinNegativeCues...)

	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, c := range all {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func panelSentences(slot string, p map[string]any) []string {
	objs := bundle.List(p["key_objects"])
	if len(objs) > maxKeyObjects {
		objs = objs[:maxKeyObjects]
	}
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = bundle.Text(o)
	}

	sentences := []string{fmt.Sprintf(
		"%s: action=%s; composition=%s; camera=%s; key objects=%s. Draw the assistant orb at %s, scale=%s, interaction=%s.",
		slot,
		field(p, "action"),
		field(p, "composition"),
		field(p, "camera"),
		strings.Join(names, ", "),
		fieldOr(p, "assistant_position", "near user"),
		fieldOr(p, "assistant_scale", "small"),
		fieldOr(p, "assistant_interaction", "ambient"),
	)}

	var texts []string
	if aa := strings.TrimSpace(field(p, "assistant_action")); aa != "" {
		texts = append(texts, `Assistant says (bubble): "`+aa+`"`)
	}
	if ud := strings.TrimSpace(field(p, "user_dialogue")); ud != "" {
		texts = append(texts, `User says (bubble): "`+ud+`"`)
	}
	if len(texts) > 0 {
		sentences = append(sentences, "Dialogue inside speech bubbles: "+strings.Join(texts, " "))
	}
	return sentences
}

func field(m map[string]any, key string) string { return bundle.Text(m[key]) }

// fieldOr falls back only when the key is absent or null.
func fieldOr(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok && v != nil {
		return bundle.Text(v)
	}
	return def
}
