package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/contexts"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/generate"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/pipelinecfg"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/templates"
	"github.com/yungbote/hci-study-backend/internal/platform/openai"
)

// generatorClientConfig makes each generation request a single attempt on
// the Responses API: a failure stops the batch.
func generatorClientConfig(cfg openai.Config) openai.Config {
	cfg.MaxRetries = 0
	cfg.ChatFallback = false
	return cfg
}

func newGenerateCmd(e *env) *cobra.Command {
	var (
		contextsPath   string
		templatesDir   string
		outDir         string
		model          string
		temperature    float64
		system         string
		skipExisting   bool
		validation     string
		repairAttempts int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a five-section bundle per persona/context record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := e.cfg.Generate
			flags := cmd.Flags()
			if !flags.Changed("templates-dir") {
				templatesDir = g.TemplatesDir
			}
			if !flags.Changed("outdir") {
				outDir = g.OutDir
			}
			if !flags.Changed("model") {
				model = g.Model
			}
			if !flags.Changed("temperature") {
				temperature = g.Temperature
			}
			if !flags.Changed("validation") {
				validation = g.Validation
			}
			if !flags.Changed("repair-attempts") {
				repairAttempts = g.RepairAttempts
			}

			policy, err := generate.ParsePolicy(validation)
			if err != nil {
				return err
			}
			ai, err := e.openAI(generatorClientConfig)
			if err != nil {
				return err
			}
			tmpl, err := templates.Load(e.log, templatesDir)
			if err != nil {
				return err
			}
			sysText, sysSource, err := pipelinecfg.ResolveSystemPrompt(system)
			if err != nil {
				return err
			}
			items, err := contexts.LoadFile(contextsPath)
			if err != nil {
				return err
			}
			records, err := contexts.NormalizeAll(e.log, items)
			if err != nil {
				return err
			}

			gen, err := generate.New(generate.GeneratorDeps{Log: e.log, Client: ai, Templates: tmpl}, generate.Options{
				OutDir:         outDir,
				Model:          model,
				Temperature:    temperature,
				PersonaCap:     g.PersonaTemperatureCap,
				ActivityCap:    g.ActivityTemperatureCap,
				System:         sysText,
				SystemSource:   sysSource,
				SkipExisting:   skipExisting,
				Validation:     policy,
				RepairAttempts: repairAttempts,
			})
			if err != nil {
				return err
			}
			_, err = gen.Run(cmd.Context(), records)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&contextsPath, "contexts", "", "JSON file (array); records may use alternate field names")
	f.StringVar(&templatesDir, "templates-dir", "templates", "directory containing the section templates")
	f.StringVar(&outDir, "outdir", "prompts", "output directory for bundle files")
	f.StringVar(&model, "model", "gpt-4o-mini", "text model for sections 4 and 5")
	f.Float64Var(&temperature, "temperature", 0.7, "sampling temperature before the per-section caps")
	f.StringVar(&system, "system", "", "optional system prompt string or @path/to/file")
	f.BoolVar(&skipExisting, "skip-existing", false, "skip records whose bundle file already exists")
	f.StringVar(&validation, "validation", "off", "activity validation: off, report, repair or strict")
	f.IntVar(&repairAttempts, "repair-attempts", 2, "regeneration attempts for repair and strict validation")
	_ = cmd.MarkFlagRequired("contexts")
	return cmd
}
