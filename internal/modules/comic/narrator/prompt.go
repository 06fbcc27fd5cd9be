package narrator

import (
	"strings"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
)

const DefaultSystemPrompt = "You are a careful summarizer. You must follow the output JSON schema exactly and never add extra commentary."

const userPromptHead = "You are given a full JSON object describing a persona and a specific scenario.\n\n[FULL_JSON]\n"

const userPromptTail = `

Your task is to produce a VERY COMPACT JSON summary with EXACTLY TWO fields:

1) "User Name"
   - Infer the preferred name or nickname of the person from the persona description.
   - Look for how they are referred to (e.g., "Wes" instead of "Wilfredo").
   - Use 1–2 words only.
   - Do not add any extra explanation.

2) "Activity Description"
   - Write 1–3 sentences in English.
   - Summarize what the person is doing in this scenario, based on the context_scenario
     (activity, expanded_activity, reasoning, time, and setting), and overall context.
   - Focus on the concrete real-world action and situation.

IMPORTANT:
- Ignore any requirement to summarize the smart assistant.
- Do NOT include anything about how the assistant behaves.

RESPONSE FORMAT (IMPORTANT):
- Return ONLY a single valid JSON object.
- Do NOT include any comments, explanations, or extra text.
- Keys must be exactly:
  "User Name"
  "Activity Description"

Example shape (values are just placeholders):

{
  "User Name": "Wes",
  "Activity Description": "Short paragraph about what the user is doing in this scenario."
}
`

// UserPrompt embeds the document, re-indented with its key order kept.
func UserPrompt(doc []byte) (string, error) {
	block, err := bundle.Reindent(doc)
	if err != nil {
		return "", err
	}
	return userPromptHead + string(block) + userPromptTail, nil
}

// StripFences removes a surrounding ``` block: the opening line and
// everything from the last line that starts with ``` onward.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return s
	}
	end := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			end = i
			break
		}
	}
	if end <= 0 {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
