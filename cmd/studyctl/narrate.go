package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/narrator"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/pipelinecfg"
)

func newNarrateCmd(e *env) *cobra.Command {
	var (
		promptsDir  string
		outDir      string
		model       string
		temperature float64
		system      string
		limit       int
		overwrite   bool
	)
	cmd := &cobra.Command{
		Use:   "narrate",
		Short: "Write a user name and activity summary for each bundle file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc := e.cfg.Narrate
			flags := cmd.Flags()
			if !flags.Changed("prompts-dir") {
				promptsDir = nc.PromptsDir
			}
			if !flags.Changed("out-dir") {
				outDir = nc.OutDir
			}
			if !flags.Changed("model") {
				model = nc.Model
			}
			if !flags.Changed("temperature") {
				temperature = nc.Temperature
			}

			ai, err := e.openAI()
			if err != nil {
				return err
			}
			sysText, _, err := pipelinecfg.ResolveSystemPrompt(system)
			if err != nil {
				return err
			}
			n, err := narrator.New(e.log, ai, narrator.Options{
				PromptsDir:  promptsDir,
				OutDir:      outDir,
				Model:       model,
				Temperature: temperature,
				System:      sysText,
				Limit:       limit,
				Overwrite:   overwrite,
			})
			if err != nil {
				return err
			}
			_, err = n.Run(cmd.Context())
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&promptsDir, "prompts-dir", "prompts", "directory of Persona_*_Activity_*.txt bundles")
	f.StringVar(&outDir, "out-dir", "Narrator", "output directory for *_Description.txt files")
	f.StringVar(&model, "model", "gpt-4o-mini", "text model")
	f.Float64Var(&temperature, "temperature", 0.3, "sampling temperature")
	f.StringVar(&system, "system", "", "custom system prompt string or @path/to/file")
	f.IntVar(&limit, "limit", 0, "process only the first N bundle files")
	f.BoolVar(&overwrite, "overwrite", false, "overwrite existing summaries")
	return cmd
}
