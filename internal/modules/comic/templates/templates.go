// Package templates loads the style definitions and prompt templates that
// drive bundle generation.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

var (
	ErrMissingTemplate  = errors.New("missing template files")
	ErrInvalidStyleJSON = errors.New("Section1/2/3 templates are not valid JSON")
)

// Slot names one of the five template files and the file-name keyword that
// finds it.
type Slot struct {
	Name    string
	Keyword string
}

var (
	DrawingStyle     = Slot{Name: "Section1_DrawingStyle", Keyword: "DrawingStyle"}
	PanelDesignStyle = Slot{Name: "Section2_PanelDesignStyle", Keyword: "PanelDesignStyle"}
	AssistantStyle   = Slot{Name: "Section3_SmartAssistantStyle", Keyword: "SmartAssistantStyle"}
	PersonaStyle     = Slot{Name: "Section4_PersonaStyle", Keyword: "PersonaStyle"}
	ActivityOfPanel  = Slot{Name: "Section5_ActivityOfPanel", Keyword: "ActivityOfPanel"}

	Slots = []Slot{DrawingStyle, PanelDesignStyle, AssistantStyle, PersonaStyle, ActivityOfPanel}
)

// Set is everything read from a templates directory.
type Set struct {
	Styles           bundle.StyleSections
	PersonaTemplate  string
	ActivityTemplate string
	// Files maps slot name to the matched file path.
	Files map[string]string
}

// Find returns the first *.txt file in dir whose name contains keyword,
// case-insensitively, or "" when none does.
func Find(dir, keyword string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return "", err
	}
	kw := strings.ToLower(keyword)
	for _, f := range files {
		if strings.Contains(strings.ToLower(filepath.Base(f)), kw) {
			return f, nil
		}
	}
	return "", nil
}

func Load(log *logger.Logger, dir string) (*Set, error) {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("templates directory not found: %s", dir)
	}

	files := make(map[string]string, len(Slots))
	var missing []string
	for _, slot := range Slots {
		path, err := Find(dir, slot.Keyword)
		if err != nil {
			return nil, err
		}
		if path == "" {
			missing = append(missing, slot.Name)
			continue
		}
		files[slot.Name] = path
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingTemplate, strings.Join(missing, ", "))
	}

	if log != nil {
		kv := make([]interface{}, 0, 2*len(Slots))
		for _, slot := range Slots {
			kv = append(kv, slot.Name, filepath.Base(files[slot.Name]))
		}
		log.Info("Detected template files", kv...)
	}

	set := &Set{Files: files}
	var err error
	if set.Styles.DrawingStyle, err = readStyle(files[DrawingStyle.Name]); err != nil {
		return nil, err
	}
	if set.Styles.PanelDesignStyle, err = readStyle(files[PanelDesignStyle.Name]); err != nil {
		return nil, err
	}
	if set.Styles.AssistantStyle, err = readStyle(files[AssistantStyle.Name]); err != nil {
		return nil, err
	}
	if set.PersonaTemplate, err = readText(files[PersonaStyle.Name]); err != nil {
		return nil, err
	}
	if set.ActivityTemplate, err = readText(files[ActivityOfPanel.Name]); err != nil {
		return nil, err
	}
	return set, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readStyle(path string) (json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := bundle.DecodeJSON(b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidStyleJSON, filepath.Base(path), err)
	}
	return json.RawMessage(b), nil
}
