// Package bundle holds the five-section prompt document produced per
// persona/context pair and the JSON helpers shared by the comic pipeline.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	KeyDrawingStyle     = "section_1_drawing_style"
	KeyPanelDesignStyle = "section_2_panel_design_style"
	KeyAssistantStyle   = "section_3_smart_assistant_style"
	KeyPersonaStyle     = "section_4_persona_style"
	KeyActivity         = "section_5_activity_of_the_panel"

	// FileGlob matches every bundle file in a prompts directory.
	FileGlob = "Persona_*_Activity_*.txt"
)

var sectionKeys = []string{KeyDrawingStyle, KeyPanelDesignStyle, KeyAssistantStyle, KeyPersonaStyle, KeyActivity}

// PersonaDesc is the persona description of one record: either free text
// or a structured object.
type PersonaDesc struct {
	raw        string
	doc        map[string]any
	src        json.RawMessage
	structured bool
}

func RawPersona(text string) PersonaDesc { return PersonaDesc{raw: text} }

func StructuredPersona(doc map[string]any) PersonaDesc {
	if doc == nil {
		doc = map[string]any{}
	}
	return PersonaDesc{doc: doc, structured: true}
}

// StructuredPersonaJSON keeps the source text of an object so it is
// re-emitted with its original key order.
func StructuredPersonaJSON(raw json.RawMessage) (PersonaDesc, error) {
	doc, err := DecodeObject(raw)
	if err != nil {
		return PersonaDesc{}, err
	}
	return PersonaDesc{doc: doc, src: raw, structured: true}, nil
}

func (p PersonaDesc) IsStructured() bool { return p.structured }

func (p PersonaDesc) Raw() (string, bool) { return p.raw, !p.structured }

func (p PersonaDesc) Doc() (map[string]any, bool) { return p.doc, p.structured }

// JSONValue is the object substituted into templates; free text is wrapped
// as {"raw": text}.
func (p PersonaDesc) JSONValue() map[string]any {
	if p.structured {
		return p.doc
	}
	return map[string]any{"raw": p.raw}
}

func (p PersonaDesc) MarshalJSON() ([]byte, error) {
	if p.structured && len(p.src) > 0 {
		return p.src, nil
	}
	return Marshal(p.JSONValue())
}

// ModelOutput is a best-effort parse of model text: a decoded JSON object,
// or the raw text when no object could be recovered.
// A parsed output keeps its source text so it is re-emitted with the
// model's key order until its document is edited.
type ModelOutput struct {
	raw    string
	doc    map[string]any
	src    json.RawMessage
	parsed bool
}

func Parsed(doc map[string]any) ModelOutput {
	if doc == nil {
		doc = map[string]any{}
	}
	return ModelOutput{doc: doc, parsed: true}
}

func Unparsed(text string) ModelOutput { return ModelOutput{raw: text} }

// ParseModelOutput tries the whole text, then the outermost {...} span.
// Only an object counts as parsed.
func ParseModelOutput(text string) ModelOutput {
	s := strings.TrimSpace(text)
	if m, ok := parsedJSON([]byte(s)); ok {
		return m
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		if m, ok := parsedJSON([]byte(s[start : end+1])); ok {
			return m
		}
	}
	return Unparsed(s)
}

func parsedJSON(data []byte) (ModelOutput, bool) {
	doc, err := DecodeObject(data)
	if err != nil {
		return ModelOutput{}, false
	}
	return ModelOutput{doc: doc, src: json.RawMessage(bytes.TrimSpace(data)), parsed: true}, true
}

func (m ModelOutput) IsParsed() bool { return m.parsed }

func (m ModelOutput) Doc() (map[string]any, bool) { return m.doc, m.parsed }

func (m ModelOutput) RawText() (string, bool) { return m.raw, !m.parsed }

// Object returns the parsed document, or an empty object for unparsed
// output so field lookups fall through to their defaults.
func (m ModelOutput) Object() map[string]any {
	if m.parsed {
		return m.doc
	}
	return map[string]any{}
}

func (m ModelOutput) JSONValue() map[string]any {
	if m.parsed {
		return m.doc
	}
	return map[string]any{"raw": m.raw}
}

func (m ModelOutput) MarshalJSON() ([]byte, error) {
	if m.parsed && len(m.src) > 0 {
		return m.src, nil
	}
	return Marshal(m.JSONValue())
}

// UnmarshalJSON reads back what MarshalJSON wrote: an object whose only key
// is a string "raw" is unparsed output.
func (m *ModelOutput) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		*m = Unparsed(strings.TrimSpace(string(data)))
		return nil
	}
	if raw, ok := obj["raw"].(string); ok && len(obj) == 1 {
		*m = Unparsed(raw)
		return nil
	}
	*m = ModelOutput{doc: obj, src: json.RawMessage(bytes.TrimSpace(data)), parsed: true}
	return nil
}

// Panels returns the panel objects of a section-5 document. Entries that
// are not objects are returned as empty objects so positions are kept.
func (m ModelOutput) Panels() []map[string]any {
	items := List(m.Object()["panels"])
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		p := Object(it)
		if p == nil {
			p = map[string]any{}
		}
		out = append(out, p)
	}
	return out
}

// StripCaptions removes "caption" from every panel object in place. The
// returned output drops its source text when anything was removed.
func (m ModelOutput) StripCaptions() ModelOutput {
	if !m.parsed {
		return m
	}
	for _, it := range List(m.doc["panels"]) {
		if p := Object(it); p != nil {
			if _, ok := p["caption"]; ok {
				delete(p, "caption")
				m.src = nil
			}
		}
	}
	return m
}

// StyleSections are the three static sections shared by every bundle in a
// run. They are kept as raw JSON so their key order survives the rewrite.
type StyleSections struct {
	DrawingStyle     json.RawMessage
	PanelDesignStyle json.RawMessage
	AssistantStyle   json.RawMessage
}

// SectionBundle is the five-section document for one persona/context pair.
type SectionBundle struct {
	StyleSections
	PersonaStyle ModelOutput
	Activity     ModelOutput
}

func (b SectionBundle) DrawingStyleObject() map[string]any     { return rawObject(b.DrawingStyle) }
func (b SectionBundle) PanelDesignStyleObject() map[string]any { return rawObject(b.PanelDesignStyle) }
func (b SectionBundle) AssistantStyleObject() map[string]any   { return rawObject(b.AssistantStyle) }

func rawObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	v, err := DecodeJSON(raw)
	if err != nil {
		return map[string]any{}
	}
	if m := Object(v); m != nil {
		return m
	}
	return map[string]any{}
}

// MarshalJSON writes the sections in their fixed order.
func (b SectionBundle) MarshalJSON() ([]byte, error) {
	values := []any{rawOrNull(b.DrawingStyle), rawOrNull(b.PanelDesignStyle), rawOrNull(b.AssistantStyle), b.PersonaStyle, b.Activity}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range sectionKeys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := Marshal(key)
		v, err := Marshal(values[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func (b *SectionBundle) UnmarshalJSON(data []byte) error {
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	b.DrawingStyle = parts[KeyDrawingStyle]
	b.PanelDesignStyle = parts[KeyPanelDesignStyle]
	b.AssistantStyle = parts[KeyAssistantStyle]
	b.PersonaStyle = Parsed(nil)
	b.Activity = Parsed(nil)
	if raw, ok := parts[KeyPersonaStyle]; ok {
		if err := b.PersonaStyle.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%s: %w", KeyPersonaStyle, err)
		}
	}
	if raw, ok := parts[KeyActivity]; ok {
		if err := b.Activity.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%s: %w", KeyActivity, err)
		}
	}
	return nil
}

// Encode renders the bundle file contents.
func (b SectionBundle) Encode() ([]byte, error) { return MarshalIndent(b) }

func Read(path string) (SectionBundle, error) {
	var b SectionBundle
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

func Write(path string, b SectionBundle) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var slugRe = regexp.MustCompile(`[^\p{L}\p{N}_\-]+`)

// Slug turns an identifier into a filesystem-safe token.
func Slug(s string) string {
	out := strings.Trim(slugRe.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if out == "" {
		return "untitled"
	}
	return out
}

func FileName(personaID, contextID string) string {
	return "Persona_" + personaID + "_Activity_" + contextID + ".txt"
}

// Stem is the file name without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListFiles returns the bundle files in dir in lexical order, truncated to
// limit when limit > 0.
func ListFiles(dir string, limit int) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, FileGlob))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
