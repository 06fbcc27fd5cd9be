package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/pipelinecfg"
	"github.com/yungbote/hci-study-backend/internal/observability"
	"github.com/yungbote/hci-study-backend/internal/platform/dotenv"
	"github.com/yungbote/hci-study-backend/internal/platform/envutil"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
	"github.com/yungbote/hci-study-backend/internal/platform/openai"
)

// env is what every subcommand shares once the root pre-run has finished.
type env struct {
	log          *logger.Logger
	cfg          pipelinecfg.Config
	otelShutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "studyctl",
		Short:         "Generate, check and render persona/activity comic prompts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			e.close()
		},
	}
	root.AddCommand(
		newGenerateCmd(e),
		newValidateCmd(e),
		newRepairCmd(e),
		newCompileCmd(e),
		newRenderCmd(e),
		newNarrateCmd(e),
	)
	return root
}

func (e *env) init(ctx context.Context) error {
	loaded, envErr := dotenv.Load()
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return err
	}
	e.log = log
	if envErr != nil {
		log.Warn("dotenv load failed", "error", envErr)
	} else if len(loaded) > 0 {
		log.Debug("Loaded environment files", "files", loaded)
	}
	if e.cfg, err = pipelinecfg.Load(); err != nil {
		return err
	}
	e.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "studyctl"),
		Environment: envutil.String("APP_ENV", "development"),
	})
	return nil
}

func (e *env) close() {
	if e.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = e.otelShutdown(ctx)
		cancel()
	}
	if e.log != nil {
		e.log.Sync()
	}
}

// openAI builds a client from OPENAI_* variables; each tune func may
// adjust the config for one command.
func (e *env) openAI(tune ...func(openai.Config) openai.Config) (openai.Client, error) {
	cfg, err := openai.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	for _, fn := range tune {
		cfg = fn(cfg)
	}
	return openai.NewClient(e.log, cfg)
}
