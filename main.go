package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/fang"

	cmd "github.com/aidetector/aidetector/cmd/aidetector"
	"github.com/aidetector/aidetector/internal/apperr"
	"github.com/aidetector/aidetector/internal/report"
)

// Version is set at build time
var Version = "dev"

func main() {
	cmd.SetVersion(Version)
	if err := fang.Execute(
		context.Background(),
		cmd.GetRootCmd(),
		fang.WithVersion(Version),
		fang.WithColorSchemeFunc(report.FangColorScheme),
	); err != nil {
		// An aborted prompt is not a failure.
		if errors.Is(err, apperr.ErrCancelled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
