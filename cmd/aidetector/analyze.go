package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/aidetector/aidetector/internal/apperr"
	"github.com/aidetector/aidetector/internal/report"
	"github.com/aidetector/aidetector/internal/service"
)

var (
	analyzeMIME        string
	analyzeFormat      string
	analyzeDetailed    bool
	analyzeInteractive bool
)

// analyzeCmd scores a local file
var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Score a local image or video",
	Long:  "Run the same checks as POST /api/detect against a file on disk and print the verdict.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeMIME, "mime", "", "MIME type (default: guessed from extension, then content)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", report.FormatText, "Output format: "+strings.Join(report.Formats(), "|"))
	analyzeCmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "Include per-factor scores and container details")
	analyzeCmd.Flags().BoolVarP(&analyzeInteractive, "interactive", "i", false, "Prompt for the file and output format")
}

// analyzeOptions is everything analyzeFile needs besides the detector.
type analyzeOptions struct {
	Path     string
	MIME     string
	Format   string
	Detailed bool
	MaxSize  int64
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := analyzeOptions{
		MIME:     analyzeMIME,
		Format:   analyzeFormat,
		Detailed: analyzeDetailed,
		MaxSize:  cfg.MaxUploadSize,
	}
	if len(args) == 1 {
		opts.Path = args[0]
	}

	if analyzeInteractive {
		if err := promptAnalyze(&opts); err != nil {
			return err
		}
	}
	if opts.Path == "" {
		return apperr.User("no file given: pass a path or use --interactive")
	}

	detector := service.NewDetector(service.DetectorConfig{Seed: cfg.SamplingSeed}, newLogger(cfg))
	return analyzeFile(cmd.Context(), cmd.OutOrStdout(), detector, opts)
}

// analyzeFile validates the file like the HTTP endpoint does, scores it and
// renders the report to w.
func analyzeFile(ctx context.Context, w io.Writer, detector service.Detector, opts analyzeOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = report.FormatText
	}
	if !slices.Contains(report.Formats(), format) {
		return apperr.Userf("unknown format %q (expected %s)", opts.Format, strings.Join(report.Formats(), "|"))
	}

	info, err := os.Stat(opts.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.Userf("file not found: %s", opts.Path)
		}
		return fmt.Errorf("stat %s: %w", opts.Path, err)
	}
	if info.IsDir() {
		return apperr.Userf("%s is a directory", opts.Path)
	}

	// Type and size are checked before the file is read in full.
	head, err := readHead(opts.Path, 512)
	if err != nil {
		return err
	}
	mimeType := service.ResolveMIME(opts.MIME, opts.Path, head)
	if err := service.ValidateUpload(mimeType, info.Size(), opts.MaxSize); err != nil {
		return err
	}

	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.Path, err)
	}

	result, err := detector.Detect(ctx, service.DetectionInput{
		Data:     data,
		MIMEType: mimeType,
		FileName: info.Name(),
	})
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	return report.Render(w, result, format, opts.Detailed)
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf[:read], nil
}

// promptAnalyze asks for the path (when missing) and the output format.
func promptAnalyze(opts *analyzeOptions) error {
	formatOptions := make([]huh.Option[string], 0, len(report.Formats()))
	for _, f := range report.Formats() {
		formatOptions = append(formatOptions, huh.NewOption(f, f))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Media file").
				Description("Path to an image or video").
				Placeholder("photo.jpg").
				Value(&opts.Path).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a path is required")
					}
					if _, err := os.Stat(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("cannot open %s", s)
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Output format").
				Options(formatOptions...).
				Value(&opts.Format),
			huh.NewConfirm().
				Title("Show per-factor details?").
				Value(&opts.Detailed),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return apperr.ErrCancelled
		}
		return fmt.Errorf("prompt: %w", err)
	}
	opts.Path = strings.TrimSpace(opts.Path)
	return nil
}
