package generate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/contexts"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/templates"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
	"github.com/yungbote/hci-study-backend/internal/platform/openai"
)

const (
	personaTmpl  = "PERSONA {persona_desc}"
	activityTmpl = "ACTIVITY {activity} STYLE {persona_style}"
)

const goodActivity = `{"panels":[
 {"action":"a","composition":"c","camera":"k","key_objects":["x"],"narration":"n","assistant_action":"\"Hi!\"","assistant_presence":"must_show","assistant_position":"p","assistant_scale":"s","assistant_interaction":"i","caption":"drop me"},
 {"action":"a","composition":"c","camera":"k","key_objects":["x"],"narration":"n","assistant_action":"waves","assistant_presence":"must_show","assistant_position":"p","assistant_scale":"s","assistant_interaction":"i"},
 {"action":"a","composition":"c","camera":"k","key_objects":["x"],"narration":"n","assistant_action":"waves","assistant_presence":"must_show","assistant_position":"p","assistant_scale":"s","assistant_interaction":"i"},
 {"action":"a","composition":"c","camera":"k","key_objects":["x"],"narration":"n","assistant_action":"waves","assistant_presence":"must_show","assistant_position":"p","assistant_scale":"s","assistant_interaction":"i"}
]}`

const badActivity = `{"panels":[{"action":"a"}]}`

type fakeText struct {
	mu       sync.Mutex
	reqs     []openai.TextRequest
	persona  string
	activity []string
	err      error
}

func (f *fakeText) GenerateText(_ context.Context, req openai.TextRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	if strings.HasPrefix(req.User, "PERSONA") {
		return f.persona, nil
	}
	if len(f.activity) == 0 {
		return "", errors.New("no more canned activity replies")
	}
	out := f.activity[0]
	if len(f.activity) > 1 {
		f.activity = f.activity[1:]
	}
	return out, nil
}

func tmplSet() *templates.Set {
	return &templates.Set{
		Styles: bundle.StyleSections{
			DrawingStyle:     json.RawMessage(`{"style_summary":"ink","color_palette":"teal"}`),
			PanelDesignStyle: json.RawMessage(`{"negative_cues":[]}`),
			AssistantStyle:   json.RawMessage(`{"shape":"orb"}`),
		},
		PersonaTemplate:  personaTmpl,
		ActivityTemplate: activityTmpl,
	}
}

func record(t *testing.T, src string) contexts.Record {
	t.Helper()
	var it contexts.Item
	if err := json.Unmarshal([]byte(src), &it); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	rec, ok, err := contexts.Normalize(it)
	if err != nil || !ok {
		t.Fatalf("Normalize: ok=%v err=%v", ok, err)
	}
	return rec
}

func newGen(t *testing.T, ai *fakeText, opts Options) *Generator {
	t.Helper()
	if opts.OutDir == "" {
		opts.OutDir = t.TempDir()
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.PersonaCap == 0 {
		opts.PersonaCap = 0.75
	}
	if opts.ActivityCap == 0 {
		opts.ActivityCap = 0.65
	}
	g, err := New(GeneratorDeps{Log: logger.NewNop(), Client: ai, Templates: tmplSet()}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	g.runID = func() string { return "run-1" }
	return g
}

func TestRunWritesBundlesAndManifest(t *testing.T) {
	ai := &fakeText{persona: "```json\n{\"summary\":\"calm\"}\n```", activity: []string{goodActivity}}
	g := newGen(t, ai, Options{Temperature: 0.9, System: "sys", SystemSource: "inline"})
	recs := []contexts.Record{
		record(t, `{"persona_id":1,"context_id":100,"persona_desc":"Wes","context_scenario":{"activity":"cook"}}`),
		record(t, `{"persona_id":2,"context_id":101,"persona_desc":{"name":"Ana"}}`),
	}

	m, err := g.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Count != 2 || m.CreatedAt != "2025-03-04T05:06:07" || m.RunID != "run-1" || m.SystemPrompt != "inline" {
		t.Fatalf("manifest=%+v", m)
	}

	if len(ai.reqs) != 4 {
		t.Fatalf("expected 4 model calls, got %d", len(ai.reqs))
	}
	if *ai.reqs[0].Temperature != 0.75 || *ai.reqs[1].Temperature != 0.65 {
		t.Fatalf("temperature caps not applied: %v %v", *ai.reqs[0].Temperature, *ai.reqs[1].Temperature)
	}
	if ai.reqs[0].System != "sys" {
		t.Fatalf("system prompt not forwarded")
	}
	if ai.reqs[0].User != "PERSONA {\n  \"raw\": \"Wes\"\n}" {
		t.Fatalf("persona prompt=%q", ai.reqs[0].User)
	}
	if ai.reqs[1].User != "ACTIVITY {\n  \"activity\": \"cook\"\n} STYLE {\n  \"summary\": \"calm\"\n}" {
		t.Fatalf("activity prompt=%q", ai.reqs[1].User)
	}

	b, err := bundle.Read(filepath.Join(g.opts.OutDir, "Persona_1_Activity_100.txt"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if b.PersonaStyle.Object()["summary"] != "calm" {
		t.Fatalf("persona style=%+v", b.PersonaStyle)
	}
	if _, has := b.Activity.Panels()[0]["caption"]; has {
		t.Fatalf("caption should be stripped")
	}

	raw, err := os.ReadFile(filepath.Join(g.opts.OutDir, ManifestName))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if !strings.Contains(string(raw), `"file": "`+filepath.Join(g.opts.OutDir, "Persona_2_Activity_101.txt")+`"`) {
		t.Fatalf("manifest items missing:\n%s", raw)
	}
}

func TestGenerateTemperatureNeverExceedsCeilings(t *testing.T) {
	cases := []struct {
		name                 string
		temperature          float64
		personaCap, activity float64
		wantPersona, wantAct float64
	}{
		{"caps above ceilings", 1.4, 2.0, 1.9, MaxPersonaTemperature, MaxActivityTemperature},
		{"lower caps win", 1.4, 0.5, 0.4, 0.5, 0.4},
		{"negative caps fall back", 1.0, -1, -1, MaxPersonaTemperature, MaxActivityTemperature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ai := &fakeText{persona: `{"summary":"calm"}`, activity: []string{goodActivity}}
			g := newGen(t, ai, Options{Temperature: tc.temperature, PersonaCap: tc.personaCap, ActivityCap: tc.activity})
			rec := record(t, `{"persona_id":1,"context_id":2,"persona_desc":"x"}`)
			if _, err := g.Generate(context.Background(), rec); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got := *ai.reqs[0].Temperature; got != tc.wantPersona {
				t.Fatalf("persona temperature=%v want %v", got, tc.wantPersona)
			}
			if got := *ai.reqs[1].Temperature; got != tc.wantAct {
				t.Fatalf("activity temperature=%v want %v", got, tc.wantAct)
			}
			for i, req := range ai.reqs {
				if !req.KeepTemperature {
					t.Fatalf("request %d may drop its temperature", i)
				}
			}
		})
	}
}

func TestGeneratePersonaStyleKeepsModelKeyOrder(t *testing.T) {
	ai := &fakeText{persona: `{"zeta":"z","alpha":"a","mid":{"y":1,"b":2}}`, activity: []string{goodActivity}}
	g := newGen(t, ai, Options{Temperature: 0.5})
	rec := record(t, `{"persona_id":1,"context_id":2,"persona_desc":"x"}`)

	b, err := g.Generate(context.Background(), rec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "STYLE {\n  \"zeta\": \"z\",\n  \"alpha\": \"a\",\n  \"mid\": {\n    \"y\": 1,\n    \"b\": 2\n  }\n}"
	if !strings.HasSuffix(ai.reqs[1].User, want) {
		t.Fatalf("persona style order changed in prompt:\n%s", ai.reqs[1].User)
	}
	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "\"zeta\": \"z\",\n    \"alpha\"") {
		t.Fatalf("persona style order changed in bundle:\n%s", data)
	}
}

func TestRunKeepsUnparsedOutput(t *testing.T) {
	ai := &fakeText{persona: "just words", activity: []string{"no json here"}}
	g := newGen(t, ai, Options{Temperature: 0.2})
	rec := record(t, `{"persona_id":"p","context_id":"c","persona_desc":"x"}`)

	if _, err := g.Run(context.Background(), []contexts.Record{rec}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *ai.reqs[0].Temperature != 0.2 || *ai.reqs[1].Temperature != 0.2 {
		t.Fatalf("temperature below the caps should pass through")
	}
	data, _ := os.ReadFile(filepath.Join(g.opts.OutDir, rec.FileName()))
	if !strings.Contains(string(data), `"section_4_persona_style": {`+"\n    \"raw\": \"just words\"") {
		t.Fatalf("unparsed persona should be wrapped:\n%s", data)
	}
	if !strings.Contains(ai.reqs[1].User, "\"raw\": \"just words\"") {
		t.Fatalf("wrapped persona should feed the activity prompt")
	}
}

func TestRunModelErrorIsFatal(t *testing.T) {
	ai := &fakeText{err: &openai.HTTPError{StatusCode: 500, Body: "boom"}}
	g := newGen(t, ai, Options{Temperature: 0.7})
	rec := record(t, `{"persona_id":"p","context_id":"c","persona_desc":"x"}`)

	_, err := g.Run(context.Background(), []contexts.Record{rec})
	if err == nil || !strings.Contains(err.Error(), "Section 4 (p/c)") {
		t.Fatalf("expected fatal section 4 error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(g.opts.OutDir, ManifestName)); !os.IsNotExist(statErr) {
		t.Fatalf("no manifest should be written on failure")
	}
}

func TestRunSkipExisting(t *testing.T) {
	ai := &fakeText{persona: "{}", activity: []string{goodActivity}}
	g := newGen(t, ai, Options{Temperature: 0.7, SkipExisting: true})
	rec := record(t, `{"persona_id":"p","context_id":"c","persona_desc":"x"}`)
	if err := os.WriteFile(filepath.Join(g.opts.OutDir, rec.FileName()), []byte("{}"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	m, err := g.Run(context.Background(), []contexts.Record{rec})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ai.reqs) != 0 || m.Count != 0 {
		t.Fatalf("existing bundle should be skipped: calls=%d count=%d", len(ai.reqs), m.Count)
	}
}

func TestValidationPolicies(t *testing.T) {
	rec := func(t *testing.T) contexts.Record {
		return record(t, `{"persona_id":"p","context_id":"c","persona_desc":"x"}`)
	}

	t.Run("report keeps invalid output", func(t *testing.T) {
		ai := &fakeText{persona: "{}", activity: []string{badActivity}}
		g := newGen(t, ai, Options{Temperature: 0.7, Validation: PolicyReport, RepairAttempts: 2})
		b, err := g.Generate(context.Background(), rec(t))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(ai.reqs) != 2 || len(b.Activity.Panels()) != 1 {
			t.Fatalf("report should not repair: calls=%d", len(ai.reqs))
		}
	})

	t.Run("repair regenerates until valid", func(t *testing.T) {
		ai := &fakeText{persona: "{}", activity: []string{badActivity, goodActivity}}
		g := newGen(t, ai, Options{Temperature: 0.9, Validation: PolicyRepair, RepairAttempts: 2})
		b, err := g.Generate(context.Background(), rec(t))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(ai.reqs) != 3 || len(b.Activity.Panels()) != 4 {
			t.Fatalf("expected one repair call, got %d calls", len(ai.reqs))
		}
		last := ai.reqs[2]
		if !strings.Contains(last.User, "The previous output violated constraints:\n- Needs 4 panels.") {
			t.Fatalf("repair prompt missing violation: %q", last.User)
		}
		if *last.Temperature != 0.65 {
			t.Fatalf("repair should use the activity temperature")
		}
	})

	t.Run("repair gives up and keeps last attempt", func(t *testing.T) {
		ai := &fakeText{persona: "{}", activity: []string{badActivity}}
		g := newGen(t, ai, Options{Temperature: 0.7, Validation: PolicyRepair, RepairAttempts: 2})
		if _, err := g.Generate(context.Background(), rec(t)); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(ai.reqs) != 4 {
			t.Fatalf("expected 2 repair calls, got %d calls", len(ai.reqs))
		}
	})

	t.Run("strict aborts", func(t *testing.T) {
		ai := &fakeText{persona: "{}", activity: []string{badActivity}}
		g := newGen(t, ai, Options{Temperature: 0.7, Validation: PolicyStrict, RepairAttempts: 1})
		_, err := g.Run(context.Background(), []contexts.Record{rec(t)})
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("expected ErrValidationFailed, got %v", err)
		}
	})
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyOff, "OFF": PolicyOff, " report ": PolicyReport, "repair": PolicyRepair, "strict": PolicyStrict} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q)=%q,%v", in, got, err)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
