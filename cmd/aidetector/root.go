package cmd

import (
	"errors"
	"fmt"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aidetector/aidetector/internal/config"
	"github.com/aidetector/aidetector/internal/report"
	"github.com/aidetector/aidetector/pkg/logger"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "aidetector",
	Short: "Heuristic AI-generated image and video detector",
	Long:  longDescription,

	SilenceUsage: true,

	// Without a subcommand, show help.
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var (
	cfgFile string
	version = "dev"

	// v holds defaults, environment, config file and bound flags.
	v = config.New()

	dimStyle    = lipgloss.NewStyle().Foreground(report.ColorTextDim)
	accentStyle = lipgloss.NewStyle().Foreground(report.ColorSecondary)
)

// SetVersion sets the version for the CLI
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
}

// GetRootCmd returns the root command for use with fang
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aidetector.yaml or ./config/aidetector.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text|json")
	rootCmd.PersistentFlags().Uint64("seed", 0, "Pixel sampling seed; 0 samples randomly")

	v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
	v.BindPFlag(config.KeySamplingSeed, rootCmd.PersistentFlags().Lookup("seed"))

	rootCmd.AddCommand(serveCmd, analyzeCmd, formatsCmd)
}

func initConfig() {
	if err := readConfig(v, cfgFile); err != nil {
		cobra.CheckErr(err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, dimStyle.Render("Using config file: ")+accentStyle.Render(used))
	}
}

// readConfig loads an optional YAML file into v. An explicit path must
// exist; the default locations are tried in order and may be absent.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath("./config")

	// Try .aidetector first, then aidetector
	notFound := viper.ConfigFileNotFoundError{}
	v.SetConfigName(".aidetector")
	err := v.ReadInConfig()
	if errors.As(err, &notFound) {
		v.SetConfigName("aidetector")
		err = v.ReadInConfig()
	}

	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig resolves and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to stderr so report output on stdout stays clean.
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

const longDescription = "Scores uploaded images and videos for signs of AI generation using pixel statistics and container metadata. Run it as an HTTP service or analyze local files."
