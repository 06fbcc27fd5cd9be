// Package narrator writes a short name and activity summary for each bundle
// file by asking the text model for a two-field JSON answer.
package narrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
	"github.com/yungbote/hci-study-backend/internal/platform/openai"
)

var ErrNoPrompts = errors.New("No prompt files found")

const (
	KeyUserName    = "User Name"
	KeyActivity    = "Activity Description"
	KeyInteraction = "Smart Assistant Interaction"

	InteractionPlaceholder = "PlaceHolderA"
	OutputSuffix           = "_Description.txt"
)

var (
	userNameKeys = []string{KeyUserName, "user_name", "name"}
	activityKeys = []string{KeyActivity, "activity_description", "Activity"}
)

type TextClient interface {
	GenerateText(ctx context.Context, req openai.TextRequest) (string, error)
}

type Options struct {
	PromptsDir  string
	OutDir      string
	Model       string
	Temperature float64
	// System replaces DefaultSystemPrompt when non-empty.
	System    string
	Limit     int
	Overwrite bool
}

// Summary is the narrator file body, written with keys in this order.
type Summary struct {
	UserName    any    `json:"User Name"`
	Activity    any    `json:"Activity Description"`
	Interaction string `json:"Smart Assistant Interaction"`
}

type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

type Narrator struct {
	log  *logger.Logger
	ai   TextClient
	opts Options
}

func New(log *logger.Logger, ai TextClient, opts Options) (*Narrator, error) {
	if log == nil || ai == nil {
		return nil, errors.New("narrator: logger and client required")
	}
	if opts.System == "" {
		opts.System = DefaultSystemPrompt
	}
	return &Narrator{log: log.With("service", "Narrator"), ai: ai, opts: opts}, nil
}

func OutputPath(outDir, source string) string {
	return filepath.Join(outDir, bundle.Stem(source)+OutputSuffix)
}

// Run summarizes the sorted bundle files. A failure on one file is logged
// and the run moves on to the next.
func (n *Narrator) Run(ctx context.Context) (Result, error) {
	var res Result
	if err := os.MkdirAll(n.opts.OutDir, 0o755); err != nil {
		return res, err
	}
	files, err := bundle.ListFiles(n.opts.PromptsDir, n.opts.Limit)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("%w under %s", ErrNoPrompts, filepath.Join(n.opts.PromptsDir, bundle.FileGlob))
	}

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out := OutputPath(n.opts.OutDir, src)
		if !n.opts.Overwrite {
			if _, err := os.Stat(out); err == nil {
				n.log.Info("Skip existing summary", "file", filepath.Base(out))
				res.Skipped++
				continue
			}
		}
		n.log.Info("Processing", "file", filepath.Base(src))
		if err := n.summarizeFile(ctx, src, out); err != nil {
			n.log.Warn("Summary failed", "file", filepath.Base(src), "error", err)
			res.Failed++
			continue
		}
		n.log.Info("Saved summary", "file", filepath.Base(out))
		res.Processed++
	}
	n.log.Info("Done", "processed", res.Processed, "skipped", res.Skipped, "failed", res.Failed, "out_dir", n.opts.OutDir)
	return res, nil
}

func (n *Narrator) summarizeFile(ctx context.Context, src, out string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if _, err := bundle.DecodeObject(data); err != nil {
		return fmt.Errorf("failed to parse JSON in %s: %w", filepath.Base(src), err)
	}
	s, err := n.Summarize(ctx, data)
	if err != nil {
		return err
	}
	body, err := bundle.MarshalIndent(s)
	if err != nil {
		return err
	}
	return os.WriteFile(out, body, 0o644)
}

// Summarize asks the model about one document and maps its answer onto
// the fixed output keys.
func (n *Narrator) Summarize(ctx context.Context, doc []byte) (Summary, error) {
	prompt, err := UserPrompt(doc)
	if err != nil {
		return Summary{}, err
	}
	temp := n.opts.Temperature
	text, err := n.ai.GenerateText(ctx, openai.TextRequest{
		Model:       n.opts.Model,
		System:      n.opts.System,
		User:        prompt,
		Temperature: &temp,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("LLM call failed: %w", err)
	}
	return ParseSummary(text)
}

// ParseSummary decodes a model answer. Values are taken from the first
// alias that holds a non-empty value; missing ones become "".
func ParseSummary(text string) (Summary, error) {
	s := StripFences(text)
	v, err := bundle.DecodeJSON([]byte(s))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse model output as JSON: %w", err)
	}
	obj := bundle.Object(v)
	if obj == nil {
		return Summary{}, errors.New("model output is not a JSON object")
	}
	return Summary{
		UserName:    firstTruthy(obj, userNameKeys),
		Activity:    firstTruthy(obj, activityKeys),
		Interaction: InteractionPlaceholder,
	}, nil
}

func firstTruthy(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v := obj[k]; !falsy(v) {
			return v
		}
	}
	return ""
}

func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	return false
}
