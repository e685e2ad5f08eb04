package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidetector/aidetector/internal/service"
)

// formatsCmd lists what analyze and the HTTP endpoint accept
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List accepted media types and the upload limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printFormats(cmd.OutOrStdout(), cfg.MaxUploadSize)
	},
}

func printFormats(w io.Writer, maxSize int64) error {
	var sb strings.Builder
	sb.WriteString(accentStyle.Render("Images") + "\n")
	for _, t := range service.AcceptedImageTypes {
		fmt.Fprintf(&sb, "  %s\n", t)
	}
	sb.WriteString(accentStyle.Render("Videos") + "\n")
	for _, t := range service.AcceptedVideoTypes {
		fmt.Fprintf(&sb, "  %s\n", t)
	}
	fmt.Fprintf(&sb, "%s%dMB\n", dimStyle.Render("Max size: "), maxSize/(1024*1024))

	_, err := io.WriteString(w, sb.String())
	return err
}
