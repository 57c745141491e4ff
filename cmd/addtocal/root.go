package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"addtocal/internal/config"
	"addtocal/internal/extract"
	"addtocal/internal/ics"
	appLog "addtocal/internal/log"
	"addtocal/internal/workflow"
)

var version = "0.1.0-dev"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "addtocal",
		Short: "Turn free text into a calendar event link",
		Long: `addtocal reads free text such as "dinner with Sam next Monday at 6:30",
extracts the event details, lets you review them, and produces a link that
opens the calendar's add-event page pre-filled.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The env file is optional; it usually carries the API key.
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file to load")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newParseCommand(opts))

	return cmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "addtocal.yaml"
	}
	return filepath.Join(dir, "addtocal", "config.yaml")
}

// loadRuntime loads config, applies the log level and resolves the user's
// timezone.
func loadRuntime(opts *rootOptions) (*config.Config, *time.Location, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", opts.configPath)
		return nil, nil, err
	}

	if opts.debug {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}
	return cfg, loc, nil
}

// newExtractor reads pasted iCalendar text directly and sends prose to
// Gemini.
func newExtractor(cfg *config.Config) workflow.Extractor {
	apiKey := os.Getenv(cfg.Extractor.APIKeyEnv)
	if apiKey == "" {
		appLog.Info("extractor API key not set; only iCalendar input will work", "env", cfg.Extractor.APIKeyEnv)
	}
	return ics.Extractor{
		Next: extract.NewGemini(extract.GeminiOptions{
			Endpoint: cfg.Extractor.Endpoint,
			Model:    cfg.Extractor.Model,
			APIKey:   apiKey,
			Timeout:  cfg.ExtractorTimeout(),
			Hints:    cfg.Extractor.Hints,
		}),
	}
}

func newControllerFactory(cfg *config.Config, loc *time.Location, ext workflow.Extractor) func() *workflow.Controller {
	return func() *workflow.Controller {
		return workflow.New(workflow.Options{
			Extractor:       ext,
			Location:        loc,
			StandardMinutes: cfg.Durations.StandardMinutes,
			ShortMinutes:    cfg.Durations.ShortMinutes,
			CalendarBaseURL: cfg.CalendarBaseURL,
		})
	}
}
