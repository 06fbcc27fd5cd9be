// Package render turns bundle files into images, one per file, through a
// pluggable backend.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/compile"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

var ErrNoPrompts = errors.New("No prompt files found")

const ImageExt = ".jpg"

// Job is one bundle to render.
type Job struct {
	Source string
	Output string
	Bundle bundle.SectionBundle
	Prompt string
}

type Backend interface {
	Name() string
	Render(ctx context.Context, job Job) ([]byte, error)
}

type Options struct {
	PromptsDir string
	OutDir     string
	Limit      int
	Overwrite  bool
	// RequestsPerMinute paces backend calls; 0 disables pacing.
	RequestsPerMinute float64
}

type Result struct {
	Rendered int
	Skipped  int
}

type Renderer struct {
	log     *logger.Logger
	backend Backend
	opts    Options
	limiter *rate.Limiter
}

func NewRenderer(log *logger.Logger, backend Backend, opts Options) (*Renderer, error) {
	if log == nil || backend == nil {
		return nil, errors.New("render: logger and backend required")
	}
	r := &Renderer{
		log:     log.With("service", "ImageRenderer", "backend", backend.Name()),
		backend: backend,
		opts:    opts,
	}
	if opts.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60), 1)
	}
	return r, nil
}

// OutputPath is where the image for a bundle file goes.
func OutputPath(outDir, source string) string {
	return filepath.Join(outDir, bundle.Stem(source)+ImageExt)
}

// Run renders the sorted bundle files. Existing images are skipped unless
// Overwrite is set; any backend error stops the run.
func (r *Renderer) Run(ctx context.Context) (Result, error) {
	var res Result
	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return res, err
	}
	files, err := bundle.ListFiles(r.opts.PromptsDir, r.opts.Limit)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("%w under %s", ErrNoPrompts, filepath.Join(r.opts.PromptsDir, bundle.FileGlob))
	}

	for _, src := range files {
		out := OutputPath(r.opts.OutDir, src)
		if !r.opts.Overwrite {
			if _, err := os.Stat(out); err == nil {
				r.log.Info("Skip existing image", "file", filepath.Base(out))
				res.Skipped++
				continue
			}
		}

		b, err := bundle.Read(src)
		if err != nil {
			return res, err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return res, err
			}
		}
		r.log.Info("Generating image", "source", filepath.Base(src))
		img, err := r.backend.Render(ctx, Job{Source: src, Output: out, Bundle: b, Prompt: compile.Compile(b)})
		if err != nil {
			return res, fmt.Errorf("render %s: %w", filepath.Base(src), err)
		}
		if err := os.WriteFile(out, img, 0o644); err != nil {
			return res, err
		}
		r.log.Info("Saved image", "file", out, "bytes", len(img))
		res.Rendered++
	}
	return res, nil
}
