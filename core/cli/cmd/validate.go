package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/cli/internal"
	"github.com/hyperterse/querygate/core/logger"
	"github.com/hyperterse/querygate/core/parser"
)

var source string

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:           "validate [path]",
	Short:         "Validate a querygate configuration file",
	RunE:          validateConfig,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&source, "source", "s", "", "Configuration as a string (alternative to --file)")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	log := logger.New("validate")

	target, err := resolveValidateTarget(args)
	if err != nil {
		return logger.WithTag("validate", err)
	}

	var cfg *parser.Config
	if source != "" {
		cfg, err = internal.LoadConfigFromString(source)
		target = "source"
	} else {
		cfg, err = internal.LoadConfig(target, false)
	}
	if err != nil {
		var ve *parser.ValidationErrors
		if errors.As(err, &ve) {
			log.PrintValidationErrors(ve.Errors)
		}
		return logger.Errorf("validate", "validation failed: %w", err)
	}

	printValidationSummary(log, target, cfg)
	log.Successf("Configuration is valid: %s", target)
	return nil
}

func resolveValidateTarget(args []string) (string, error) {
	if len(args) == 0 {
		if source != "" && configFile != "" {
			return "", fmt.Errorf("cannot specify both --file and --source flags")
		}
		return configPath(), nil
	}

	if source != "" {
		return "", fmt.Errorf("cannot combine path argument with --source")
	}
	if configFile != "" {
		return "", fmt.Errorf("cannot combine path argument with --file")
	}

	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("invalid validate path %q: %w", target, err)
	}
	if info.IsDir() {
		return filepath.Join(target, parser.DefaultConfigFile), nil
	}
	return target, nil
}

func printValidationSummary(log logger.Logger, loadFrom string, cfg *parser.Config) {
	log.Info("Validation report:")
	log.Infof("  config: %s", loadFrom)

	descriptors, err := cfg.Descriptors()
	if err != nil {
		return
	}
	log.Infof("  data sources (%d):", len(descriptors))
	if len(descriptors) == 0 {
		log.Info("    - none")
	}
	for _, d := range descriptors {
		log.Infof("    - %s: %s %s", d.Name, d.Engine, d.Target())
	}
	if cfg.Translator.Endpoint != "" {
		log.Infof("  translator: %s", cfg.Translator.Endpoint)
	}
	if cfg.Server.RateLimit.Enabled {
		log.Infof("  rate limit: %d requests/minute", cfg.Server.RateLimit.RequestsPerMinute)
	}
}
