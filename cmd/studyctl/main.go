// Command studyctl runs the offline comic pipeline: bundle generation,
// validation, prompt compilation, image rendering and narration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/hci-study-backend/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "studyctl: %v\n", err)
		os.Exit(1)
	}
}
