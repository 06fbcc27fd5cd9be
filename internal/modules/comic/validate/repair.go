package validate

import (
	"strings"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
)

// RepairPrompt returns the section-5 template followed by the violation and
// the persona style and scenario to regenerate against. A document that
// already passes is returned as indented JSON instead.
func RepairPrompt(bad bundle.ModelOutput, template string, personaStyle, scenario any) (string, error) {
	ok, reason := Validate(bad)
	if ok {
		b, err := bundle.MarshalIndent(bad)
		return string(b), err
	}
	persona, err := bundle.MarshalIndent(personaStyle)
	if err != nil {
		return "", err
	}
	ctx, err := bundle.MarshalIndent(scenario)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\n---\nThe previous output violated constraints:\n")
	sb.WriteString("- " + reason)
	sb.WriteString("\n\nPlease regenerate a corrected JSON that strictly follows the OUTPUT SCHEMA and all rules.")
	sb.WriteString("\n\nPersona Style to consider:\n")
	sb.Write(persona)
	sb.WriteString("\n\nContext Scenario:\n")
	sb.Write(ctx)
	return sb.String(), nil
}
