package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/render"
)

func newRenderCmd(e *env) *cobra.Command {
	var (
		promptsDir string
		outDir     string
		size       string
		quality    string
		backend    string
		limit      int
		overwrite  bool
		rpm        float64
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one 2x2 image per bundle file, skipping existing images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc := e.cfg.Render
			flags := cmd.Flags()
			if !flags.Changed("prompts-dir") {
				promptsDir = rc.PromptsDir
			}
			if !flags.Changed("out-dir") {
				outDir = rc.OutDir
			}
			if !flags.Changed("size") {
				size = rc.Size
			}
			if !flags.Changed("quality") {
				quality = rc.Quality
			}
			if !flags.Changed("rpm") {
				rpm = rc.RequestsPerMinute
			}

			var b render.Backend
			switch backend {
			case "openai":
				ai, err := e.openAI()
				if err != nil {
					return err
				}
				b = &render.OpenAIBackend{Client: ai, Model: rc.Model, Size: size, Quality: quality}
			case "preview":
				b = &render.PreviewBackend{}
			default:
				return fmt.Errorf("unknown backend %q (want openai or preview)", backend)
			}

			r, err := render.NewRenderer(e.log, b, render.Options{
				PromptsDir:        promptsDir,
				OutDir:            outDir,
				Limit:             limit,
				Overwrite:         overwrite,
				RequestsPerMinute: rpm,
			})
			if err != nil {
				return err
			}
			res, err := r.Run(cmd.Context())
			if err != nil {
				return err
			}
			e.log.Info("All done", "rendered", res.Rendered, "skipped", res.Skipped)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&promptsDir, "prompts-dir", "prompts", "directory of Persona_*_Activity_*.txt bundles")
	f.StringVar(&outDir, "out-dir", "images", "output directory for images")
	f.StringVar(&size, "size", "1024x1024", "image size")
	f.StringVar(&quality, "quality", "high", "image quality")
	f.StringVar(&backend, "backend", "openai", "openai or preview (local layout sketch)")
	f.IntVar(&limit, "limit", 0, "process only the first N bundle files")
	f.BoolVar(&overwrite, "overwrite", false, "overwrite existing images")
	f.Float64Var(&rpm, "rpm", 0, "maximum image requests per minute (0 = unpaced)")
	return cmd
}
