package pipelinecfg

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/generate"
)

const pipelineEnv = "STUDY_PIPELINE_YAML"

//go:embed defaults.yaml
var defaultsFS embed.FS

type Config struct {
	Pipeline string   `yaml:"pipeline"`
	Version  int      `yaml:"version"`
	Generate Generate `yaml:"generate"`
	Render   Render   `yaml:"render"`
	Narrate  Narrate  `yaml:"narrate"`
}

type Generate struct {
	TemplatesDir           string  `yaml:"templates_dir"`
	OutDir                 string  `yaml:"outdir"`
	Model                  string  `yaml:"model"`
	Temperature            float64 `yaml:"temperature"`
	PersonaTemperatureCap  float64 `yaml:"persona_temperature_cap"`
	ActivityTemperatureCap float64 `yaml:"activity_temperature_cap"`
	Validation             string  `yaml:"validation"`
	RepairAttempts         int     `yaml:"repair_attempts"`
}

type Render struct {
	PromptsDir        string  `yaml:"prompts_dir"`
	OutDir            string  `yaml:"out_dir"`
	Model             string  `yaml:"model"`
	Size              string  `yaml:"size"`
	Quality           string  `yaml:"quality"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

type Narrate struct {
	PromptsDir  string  `yaml:"prompts_dir"`
	OutDir      string  `yaml:"out_dir"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// Load decodes the embedded defaults, or the file named by
// STUDY_PIPELINE_YAML when set. Keys absent from that file keep the
// embedded value.
func Load() (Config, error) {
	var cfg Config
	base, err := defaultsFS.ReadFile("defaults.yaml")
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(base, &cfg); err != nil {
		return cfg, fmt.Errorf("decode embedded defaults: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv(pipelineEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", pipelineEnv, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Pipeline) != "comic" {
		return fmt.Errorf("unexpected pipeline: %s", cfg.Pipeline)
	}
	g := cfg.Generate
	if g.PersonaTemperatureCap <= 0 || g.ActivityTemperatureCap <= 0 {
		return errors.New("generate: temperature caps must be positive")
	}
	if g.PersonaTemperatureCap > generate.MaxPersonaTemperature {
		return fmt.Errorf("generate: persona_temperature_cap must be <= %v", generate.MaxPersonaTemperature)
	}
	if g.ActivityTemperatureCap > generate.MaxActivityTemperature {
		return fmt.Errorf("generate: activity_temperature_cap must be <= %v", generate.MaxActivityTemperature)
	}
	if g.RepairAttempts < 0 {
		return errors.New("generate: repair_attempts must be >= 0")
	}
	if cfg.Render.RequestsPerMinute < 0 {
		return errors.New("render: requests_per_minute must be >= 0")
	}
	return nil
}

// ResolveSystemPrompt expands a --system value: "@path" reads the file,
// anything else is used literally. The returned source is "" for an empty
// value, "inline" for a literal and the path for a file.
func ResolveSystemPrompt(arg string) (text, source string, err error) {
	if arg == "" {
		return "", "", nil
	}
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("read system prompt: %w", err)
		}
		return string(b), path, nil
	}
	return arg, "inline", nil
}
