// Package validate checks generated four-panel activity documents and
// builds the follow-up prompt used to ask the model for a corrected one.
package validate

import (
	"strings"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
)

const (
	OK                 = "ok"
	ReasonPanelCount   = "Needs 4 panels."
	ReasonMissingField = "Missing required panel fields."
	ReasonAssistant    = "Assistant must appear, float in air, and never be inside screens."
	ReasonDialogue     = "At least one panel needs an assistant dialogue line that feels like spoken text."

	MinPanels        = 4
	PresenceMustShow = "must_show"
)

// RequiredFields must be present and non-empty on every panel.
var RequiredFields = []string{
	"action",
	"composition",
	"camera",
	"key_objects",
	"narration",
	"assistant_action",
	"assistant_position",
	"assistant_scale",
	"assistant_interaction",
}

const speechMarks = "\"“”?!"

// Validate applies the panel rules in order and reports the first one that
// fails. Unparsed output has no panels and fails the count rule.
func Validate(doc bundle.ModelOutput) (bool, string) {
	panels := doc.Panels()
	if len(panels) < MinPanels {
		return false, ReasonPanelCount
	}
	for _, p := range panels {
		if !hasRequiredFields(p) {
			return false, ReasonMissingField
		}
	}
	for _, p := range panels {
		if !assistantPlaced(p) {
			return false, ReasonAssistant
		}
	}
	for _, p := range panels {
		if strings.ContainsAny(strings.TrimSpace(str(p["assistant_action"])), speechMarks) {
			return true, OK
		}
	}
	return false, ReasonDialogue
}

func hasRequiredFields(p map[string]any) bool {
	for _, k := range RequiredFields {
		if bundle.Empty(p[k]) {
			return false
		}
	}
	return true
}

func assistantPlaced(p map[string]any) bool {
	if presence, _ := p["assistant_presence"].(string); presence != PresenceMustShow {
		return false
	}
	combo := strings.ToLower(str(p["assistant_action"]) + " " + str(p["action"]))
	return !strings.Contains(combo, "screen")
}

func str(v any) string { return bundle.Text(v) }
