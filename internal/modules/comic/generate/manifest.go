package generate

import (
	"os"
	"path/filepath"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
)

const ManifestName = "manifest.json"

type ManifestItem struct {
	File      string `json:"file"`
	PersonaID string `json:"persona_id"`
	ContextID string `json:"context_id"`
}

// Manifest lists the bundle files written by one run.
type Manifest struct {
	CreatedAt    string         `json:"created_at"`
	Model        string         `json:"model"`
	Temperature  float64        `json:"temperature"`
	Count        int            `json:"count"`
	Items        []ManifestItem `json:"items"`
	RunID        string         `json:"run_id"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
}

func (m *Manifest) add(item ManifestItem) {
	m.Items = append(m.Items, item)
	m.Count++
}

func (m *Manifest) Write(dir string) (string, error) {
	data, err := bundle.MarshalIndent(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestName)
	return path, os.WriteFile(path, data, 0o644)
}
