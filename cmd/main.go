package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/hci-study-backend/internal/app"
	"github.com/yungbote/hci-study-backend/internal/platform/dotenv"
	"github.com/yungbote/hci-study-backend/internal/platform/envutil"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
	"github.com/yungbote/hci-study-backend/internal/platform/shutdown"
)

func main() {
	loaded, envErr := dotenv.Load()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		log.Warn("dotenv load failed", "error", envErr)
	} else if len(loaded) > 0 {
		log.Info("Loaded environment files", "files", loaded)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx, log)
	if err != nil {
		log.Error("App init failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}
