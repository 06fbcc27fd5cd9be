// Package contexts turns the loosely keyed persona/scenario records of a
// contexts file into canonical records for prompt generation.
package contexts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

var (
	ErrPersonaDesc = errors.New("persona_desc must be string or object")
	ErrNotArray    = errors.New("contexts JSON top level must be an array ([...])")
)

var (
	PersonaIDKeys   = []string{"persona_id", "personaId", "personaID", "persona_index", "id"}
	ContextIDKeys   = []string{"context_id", "contextId", "contextID", "cid"}
	PersonaDescKeys = []string{"persona", "personaDescription", "persona_profile"}
)

// Item is one undecoded record; values are decoded lazily so objects keep
// their source text.
type Item map[string]json.RawMessage

func (it Item) Value(key string) (any, bool) {
	raw, ok := it[key]
	if !ok {
		return nil, false
	}
	v, err := bundle.DecodeJSON(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Coalesce returns the first key whose value is neither null nor "".
func (it Item) Coalesce(keys ...string) (string, any, bool) {
	for _, k := range keys {
		v, ok := it.Value(k)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return k, v, true
	}
	return "", nil, false
}

// Scenario is the context_scenario object in JSON form.
type Scenario json.RawMessage

func (s Scenario) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("{}"), nil
	}
	return s, nil
}

type synthesizedScenario struct {
	Activity         any `json:"activity"`
	ExpandedActivity any `json:"expanded_activity"`
	Time             any `json:"time"`
}

// Record is one normalized persona/context pair.
type Record struct {
	PersonaID string
	ContextID string
	Persona   bundle.PersonaDesc
	Scenario  Scenario
}

// FileName is the bundle file name for the record.
func (r Record) FileName() string { return bundle.FileName(r.PersonaID, r.ContextID) }

// PersonaJSON is the persona substituted for {persona_desc}.
func (r Record) PersonaJSON() (string, error) {
	b, err := bundle.MarshalIndent(r.Persona)
	return string(b), err
}

// ScenarioJSON is the scenario substituted for {activity}.
func (r Record) ScenarioJSON() (string, error) {
	b, err := bundle.MarshalIndent(r.Scenario)
	return string(b), err
}

// Normalize resolves one record. ok is false when the record has no
// persona or context id and should be skipped; an unusable persona
// description is an error for the whole batch.
func Normalize(it Item) (Record, bool, error) {
	_, pid, okP := it.Coalesce(PersonaIDKeys...)
	_, cid, okC := it.Coalesce(ContextIDKeys...)
	if !okP || !okC {
		return Record{}, false, nil
	}
	rec := Record{
		PersonaID: bundle.Slug(bundle.Text(pid)),
		ContextID: bundle.Slug(bundle.Text(cid)),
	}

	persona, err := personaDesc(it)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: record %s/%s", err, rec.PersonaID, rec.ContextID)
	}
	rec.Persona = persona

	scenario, err := scenarioOf(it)
	if err != nil {
		return Record{}, false, err
	}
	rec.Scenario = scenario
	return rec, true, nil
}

func personaDesc(it Item) (bundle.PersonaDesc, error) {
	if p, ok := personaFrom(it["persona_desc"]); ok {
		return p, nil
	}
	k, _, ok := it.Coalesce(PersonaDescKeys...)
	if !ok {
		return bundle.PersonaDesc{}, ErrPersonaDesc
	}
	if p, ok := personaFrom(it[k]); ok {
		return p, nil
	}
	return bundle.PersonaDesc{}, ErrPersonaDesc
}

func personaFrom(raw json.RawMessage) (bundle.PersonaDesc, bool) {
	if len(raw) == 0 {
		return bundle.PersonaDesc{}, false
	}
	v, err := bundle.DecodeJSON(raw)
	if err != nil {
		return bundle.PersonaDesc{}, false
	}
	switch t := v.(type) {
	case string:
		return bundle.RawPersona(t), true
	case map[string]any:
		p, err := bundle.StructuredPersonaJSON(raw)
		if err != nil {
			return bundle.StructuredPersona(t), true
		}
		return p, true
	}
	return bundle.PersonaDesc{}, false
}

func scenarioOf(it Item) (Scenario, error) {
	if v, ok := it.Value("context_scenario"); ok {
		if _, isObj := v.(map[string]any); isObj {
			return Scenario(it["context_scenario"]), nil
		}
	}
	pick := func(keys ...string) any {
		if _, v, ok := it.Coalesce(keys...); ok {
			return v
		}
		return ""
	}
	b, err := bundle.Marshal(synthesizedScenario{
		Activity:         pick("activity", "task"),
		ExpandedActivity: pick("expanded_activity", "steps"),
		Time:             pick("time", "start_timestamp", "end_timestamp"),
	})
	if err != nil {
		return nil, err
	}
	return Scenario(b), nil
}

// LoadFile reads a contexts file whose top level is an array of records.
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("contexts file not found: %s", path)
		}
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if _, err := bundle.DecodeJSON([]byte(trimmed)); err != nil {
		return nil, fmt.Errorf("failed to parse contexts JSON: %w", err)
	}
	var raws []json.RawMessage
	if !strings.HasPrefix(trimmed, "[") {
		return nil, ErrNotArray
	}
	if err := json.Unmarshal([]byte(trimmed), &raws); err != nil {
		return nil, fmt.Errorf("failed to parse contexts JSON: %w", err)
	}
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		var it Item
		// a non-object entry has no ids and is skipped during normalization
		if err := json.Unmarshal(raw, &it); err != nil {
			it = Item{}
		}
		items = append(items, it)
	}
	return items, nil
}

// NormalizeAll normalizes items in order, logging and dropping those
// without ids.
func NormalizeAll(log *logger.Logger, items []Item) ([]Record, error) {
	out := make([]Record, 0, len(items))
	for i, it := range items {
		rec, ok, err := Normalize(it)
		if err != nil {
			return nil, err
		}
		if !ok {
			if log != nil {
				id := "<no-id>"
				if v, has := it.Value("id"); has {
					id = bundle.Text(v)
				}
				log.Warn("Skipping record without persona_id/context_id", "index", i, "id", id)
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
