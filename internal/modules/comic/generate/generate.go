// Package generate drives the two model calls that turn each normalized
// persona/context record into a five-section bundle file.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/contexts"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/templates"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/validate"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
	"github.com/yungbote/hci-study-backend/internal/platform/openai"
)

var ErrValidationFailed = errors.New("activity section failed validation")

// Ceilings for the persona and activity calls. Configured caps may lower
// them but never raise them.
const (
	MaxPersonaTemperature  = 0.75
	MaxActivityTemperature = 0.65
)

const (
	placeholderPersonaDesc  = "{persona_desc}"
	placeholderActivity     = "{activity}"
	placeholderPersonaStyle = "{persona_style}"
)

// TextClient is the part of openai.Client the generator needs.
type TextClient interface {
	GenerateText(ctx context.Context, req openai.TextRequest) (string, error)
}

type Options struct {
	OutDir      string
	Model       string
	Temperature float64
	// Caps bound the temperature of the persona and activity calls. Zero or
	// anything above the ceiling means the ceiling.
	PersonaCap  float64
	ActivityCap float64
	// System is sent as the system message when non-empty.
	System       string
	SystemSource string
	SkipExisting bool

	Validation     Policy
	RepairAttempts int
}

type GeneratorDeps struct {
	Log       *logger.Logger
	Client    TextClient
	Templates *templates.Set
}

type Generator struct {
	log  *logger.Logger
	ai   TextClient
	tmpl *templates.Set
	opts Options

	now   func() time.Time
	runID func() string
}

func New(deps GeneratorDeps, opts Options) (*Generator, error) {
	if deps.Log == nil || deps.Client == nil || deps.Templates == nil {
		return nil, errors.New("generate: missing dependencies")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, errors.New("generate: output directory required")
	}
	if opts.Validation == "" {
		opts.Validation = PolicyOff
	}
	if opts.RepairAttempts < 0 {
		opts.RepairAttempts = 0
	}
	return &Generator{
		log:   deps.Log.With("service", "PromptGenerator"),
		ai:    deps.Client,
		tmpl:  deps.Templates,
		opts:  opts,
		now:   time.Now,
		runID: func() string { return uuid.NewString() },
	}, nil
}

func (g *Generator) personaTemperature() float64 {
	return capTemperature(g.opts.Temperature, g.opts.PersonaCap, MaxPersonaTemperature)
}

func (g *Generator) activityTemperature() float64 {
	return capTemperature(g.opts.Temperature, g.opts.ActivityCap, MaxActivityTemperature)
}

func capTemperature(temperature, limit, ceiling float64) float64 {
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}
	return min(temperature, limit)
}

// Run generates every record in order and writes the manifest. Any model
// failure stops the run; bundles already written stay on disk.
func (g *Generator) Run(ctx context.Context, records []contexts.Record) (*Manifest, error) {
	if err := os.MkdirAll(g.opts.OutDir, 0o755); err != nil {
		return nil, err
	}
	m := &Manifest{
		CreatedAt:    g.now().Format("2006-01-02T15:04:05"),
		Model:        g.opts.Model,
		Temperature:  g.opts.Temperature,
		Items:        []ManifestItem{},
		RunID:        g.runID(),
		SystemPrompt: g.opts.SystemSource,
	}
	log := g.log.With("run_id", m.RunID)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(g.opts.OutDir, rec.FileName())
		if g.opts.SkipExisting {
			if _, err := os.Stat(path); err == nil {
				log.Info("Skip existing bundle", "file", path)
				continue
			}
		}

		b, err := g.Generate(ctx, rec)
		if err != nil {
			return nil, err
		}
		if err := bundle.Write(path, b); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		log.Info("Saved bundle", "file", path, "persona_id", rec.PersonaID, "context_id", rec.ContextID)
		m.add(ManifestItem{File: path, PersonaID: rec.PersonaID, ContextID: rec.ContextID})
	}

	mpath, err := m.Write(g.opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	log.Info("Manifest written", "file", mpath, "count", m.Count)
	return m, nil
}

// Generate produces the bundle for one record.
func (g *Generator) Generate(ctx context.Context, rec contexts.Record) (bundle.SectionBundle, error) {
	out := bundle.SectionBundle{StyleSections: g.tmpl.Styles}

	personaJSON, err := rec.PersonaJSON()
	if err != nil {
		return out, err
	}
	sec4Text, err := g.call(ctx, strings.ReplaceAll(g.tmpl.PersonaTemplate, placeholderPersonaDesc, personaJSON), g.personaTemperature())
	if err != nil {
		return out, fmt.Errorf("LLM call failed for Section 4 (%s/%s): %w", rec.PersonaID, rec.ContextID, err)
	}
	out.PersonaStyle = bundle.ParseModelOutput(sec4Text)

	scenarioJSON, err := rec.ScenarioJSON()
	if err != nil {
		return out, err
	}
	styleJSON, err := bundle.MarshalIndent(out.PersonaStyle)
	if err != nil {
		return out, err
	}
	prompt := strings.ReplaceAll(g.tmpl.ActivityTemplate, placeholderActivity, scenarioJSON)
	prompt = strings.ReplaceAll(prompt, placeholderPersonaStyle, string(styleJSON))

	out.Activity, err = g.activity(ctx, prompt, rec)
	if err != nil {
		return out, fmt.Errorf("LLM call failed for Section 5 (%s/%s): %w", rec.PersonaID, rec.ContextID, err)
	}
	if !g.opts.Validation.validates() {
		return out, nil
	}
	return g.enforce(ctx, out, prompt, rec)
}

func (g *Generator) activity(ctx context.Context, prompt string, rec contexts.Record) (bundle.ModelOutput, error) {
	text, err := g.call(ctx, prompt, g.activityTemperature())
	if err != nil {
		return bundle.ModelOutput{}, err
	}
	return bundle.ParseModelOutput(text).StripCaptions(), nil
}

// enforce applies the validation policy to a generated bundle. Repairs
// resend the activity prompt with the violation appended.
func (g *Generator) enforce(ctx context.Context, b bundle.SectionBundle, prompt string, rec contexts.Record) (bundle.SectionBundle, error) {
	log := g.log.With("persona_id", rec.PersonaID, "context_id", rec.ContextID)
	ok, reason := validate.Validate(b.Activity)
	if ok {
		return b, nil
	}
	log.Warn("Activity section failed validation", "reason", reason, "policy", string(g.opts.Validation))
	if !g.opts.Validation.repairs() {
		return b, nil
	}

	for attempt := 1; attempt <= g.opts.RepairAttempts; attempt++ {
		repair, err := validate.RepairPrompt(b.Activity, prompt, b.PersonaStyle, rec.Scenario)
		if err != nil {
			return b, err
		}
		next, err := g.activity(ctx, repair, rec)
		if err != nil {
			return b, fmt.Errorf("LLM call failed for Section 5 repair (%s/%s): %w", rec.PersonaID, rec.ContextID, err)
		}
		b.Activity = next
		if ok, reason = validate.Validate(next); ok {
			log.Info("Activity section repaired", "attempt", attempt)
			return b, nil
		}
		log.Warn("Repair attempt still invalid", "attempt", attempt, "reason", reason)
	}

	if g.opts.Validation == PolicyStrict {
		return b, fmt.Errorf("%w (%s/%s): %s", ErrValidationFailed, rec.PersonaID, rec.ContextID, reason)
	}
	return b, nil
}

// call fails rather than letting the model run uncapped at its default.
func (g *Generator) call(ctx context.Context, user string, temperature float64) (string, error) {
	text, err := g.ai.GenerateText(ctx, openai.TextRequest{
		Model:           g.opts.Model,
		System:          g.opts.System,
		User:            user,
		Temperature:     &temperature,
		KeepTemperature: true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
