package contexts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

func item(t *testing.T, src string) Item {
	t.Helper()
	var it Item
	if err := json.Unmarshal([]byte(src), &it); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return it
}

func TestNormalizeResolvesIDAliases(t *testing.T) {
	rec, ok, err := Normalize(item(t, `{"personaId": "P 7", "cid": 101, "persona_desc": "Wes, 34"}`))
	if err != nil || !ok {
		t.Fatalf("Normalize: ok=%v err=%v", ok, err)
	}
	if rec.PersonaID != "P_7" || rec.ContextID != "101" {
		t.Fatalf("ids=%s/%s", rec.PersonaID, rec.ContextID)
	}
	if rec.FileName() != "Persona_P_7_Activity_101.txt" {
		t.Fatalf("file=%s", rec.FileName())
	}
	raw, isRaw := rec.Persona.Raw()
	if !isRaw || raw != "Wes, 34" {
		t.Fatalf("persona=%+v", rec.Persona)
	}
	js, _ := rec.PersonaJSON()
	if js != "{\n  \"raw\": \"Wes, 34\"\n}" {
		t.Fatalf("persona json=%q", js)
	}
}

func TestNormalizeSkipsEmptyIDs(t *testing.T) {
	for _, src := range []string{
		`{"persona_desc": "x"}`,
		`{"persona_id": "", "context_id": 3, "persona_desc": "x"}`,
		`{"persona_id": 1, "context_id": null, "persona_desc": "x"}`,
	} {
		_, ok, err := Normalize(item(t, src))
		if err != nil || ok {
			t.Fatalf("%s: expected skip, ok=%v err=%v", src, ok, err)
		}
	}
}

func TestNormalizePersonaAliasesAndOrder(t *testing.T) {
	rec, ok, err := Normalize(item(t, `{"id": 4, "context_id": "c", "persona_profile": {"zeta": 1, "alpha": "é"}}`))
	if err != nil || !ok {
		t.Fatalf("Normalize: ok=%v err=%v", ok, err)
	}
	if !rec.Persona.IsStructured() {
		t.Fatalf("expected structured persona")
	}
	js, _ := rec.PersonaJSON()
	if js != "{\n  \"zeta\": 1,\n  \"alpha\": \"é\"\n}" {
		t.Fatalf("persona json=%q", js)
	}
}

func TestNormalizeBadPersonaIsFatal(t *testing.T) {
	for _, src := range []string{
		`{"persona_id": 1, "context_id": 2}`,
		`{"persona_id": 1, "context_id": 2, "persona_desc": 5, "persona": [1]}`,
	} {
		_, _, err := Normalize(item(t, src))
		if !errors.Is(err, ErrPersonaDesc) {
			t.Fatalf("%s: expected ErrPersonaDesc, got %v", src, err)
		}
	}
}

func TestNormalizeScenario(t *testing.T) {
	t.Run("object kept verbatim", func(t *testing.T) {
		rec, _, err := Normalize(item(t, `{"persona_id":1,"context_id":2,"persona_desc":"x","context_scenario":{"start_timestamp":"9am","activity":"cook"}}`))
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		js, _ := rec.ScenarioJSON()
		if js != "{\n  \"start_timestamp\": \"9am\",\n  \"activity\": \"cook\"\n}" {
			t.Fatalf("scenario=%q", js)
		}
	})
	t.Run("synthesized from aliases", func(t *testing.T) {
		rec, _, err := Normalize(item(t, `{"persona_id":1,"context_id":2,"persona_desc":"x","context_scenario":"n/a","task":"shop","steps":["a","b"],"time":"","end_timestamp":"5pm"}`))
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		js, _ := rec.ScenarioJSON()
		want := "{\n  \"activity\": \"shop\",\n  \"expanded_activity\": [\n    \"a\",\n    \"b\"\n  ],\n  \"time\": \"5pm\"\n}"
		if js != want {
			t.Fatalf("scenario=%q", js)
		}
	})
	t.Run("missing pieces default to empty", func(t *testing.T) {
		rec, _, _ := Normalize(item(t, `{"persona_id":1,"context_id":2,"persona_desc":"x"}`))
		js, _ := rec.ScenarioJSON()
		if !strings.Contains(js, `"activity": ""`) || !strings.Contains(js, `"time": ""`) {
			t.Fatalf("scenario=%q", js)
		}
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return p
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := LoadFile(write("bad.json", "[{")); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := LoadFile(write("obj.json", `{"a":1}`)); !errors.Is(err, ErrNotArray) {
		t.Fatalf("expected ErrNotArray, got %v", err)
	}

	items, err := LoadFile(write("ok.json", `[{"persona_id":1,"context_id":100,"persona_desc":"a"}, "stray", {"id":"x"}]`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	recs, err := NormalizeAll(logger.NewNop(), items)
	if err != nil {
		t.Fatalf("NormalizeAll: %v", err)
	}
	if len(recs) != 1 || recs[0].ContextID != "100" {
		t.Fatalf("records=%+v", recs)
	}
}
