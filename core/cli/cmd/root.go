package cmd

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/cli/internal"
	"github.com/hyperterse/querygate/core/logger"
	"github.com/hyperterse/querygate/core/parser"
)

// SetVersion records the build version shown by --version and reported to telemetry
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the build version
func GetVersion() string {
	if rootCmd.Version == "" {
		return "dev"
	}
	return rootCmd.Version
}

var (
	configFile string
	logLevel   int
	verbose    bool
	logTags    string
	logFile    bool
)

var rootCmd = &cobra.Command{
	Use:   "querygate",
	Short: "Querygate\nOne endpoint in front of PostgreSQL, MySQL, MariaDB and MongoDB",
	// errors are logged by cli.Execute under their tag
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "file", "f", "", "Path to the configuration file (default: ./"+parser.DefaultConfigFile+")")
	flags.IntVar(&logLevel, "log-level", 0, "Log level: 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG (overrides config file)")
	flags.BoolVar(&verbose, "verbose", false, "Enable verbose logging (sets log level to DEBUG)")
	flags.StringVar(&logTags, "log-tags", "", "Filter logs by tags (comma-separated, use -tag to exclude). Overrides QUERYGATE_LOG_TAGS")
	flags.BoolVar(&logFile, "log-file", false, "Stream logs to a file under the system temp directory")
}

// setupLogging applies the logging flags before any command loads config,
// so config loading itself respects them.
func setupLogging(cmd *cobra.Command, args []string) error {
	log := logger.New("cli")

	logger.SetLogLevel(internal.ResolveLogLevel(verbose, logLevel, nil))

	tagFilterStr := logTags
	if tagFilterStr == "" {
		tagFilterStr = os.Getenv("QUERYGATE_LOG_TAGS")
	}
	if tagFilterStr != "" {
		logger.SetTagFilter(tagFilterStr)
	}

	if logFile {
		filePath, err := logger.SetLogFile()
		if err != nil {
			return logger.Errorf("cli", "failed to initialize log file: %w", err)
		}
		log.Infof("Log file: %s", filePath)
	}

	dir := ""
	if configFile != "" {
		dir = filepath.Dir(configFile)
	}
	LoadEnvFiles(dir)
	return nil
}

// loadConfig reads --file, or ./querygate.yaml when present. The default
// file is optional so ad-hoc commands work without one.
func loadConfig() (*parser.Config, error) {
	path := configFile
	optional := false
	if path == "" {
		path = parser.DefaultConfigFile
		optional = true
	}
	cfg, err := internal.LoadConfig(path, optional)
	if err != nil {
		return nil, logger.WithTag("config", err)
	}
	if logLevel == 0 && !verbose {
		logger.SetLogLevel(internal.ResolveLogLevel(false, 0, cfg))
	}
	return cfg, nil
}

// configPath is the file serve --watch observes
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return parser.DefaultConfigFile
}

// LoadEnvFiles loads .env.local and .env from the first directory that has
// either: fromDir, then the working directory, then the binary's directory.
// .env.local wins over .env and the process environment wins over both.
func LoadEnvFiles(fromDir string) {
	for _, dir := range envDirs(fromDir) {
		var found []string
		for _, name := range []string{".env.local", ".env"} {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				found = append(found, path)
			}
		}
		if len(found) == 0 {
			continue
		}
		if err := godotenv.Load(found...); err != nil {
			logger.New("cli").Warnf("Failed to load %v: %v", found, err)
		}
		return
	}
}

func envDirs(fromDir string) []string {
	dirs := []string{}
	if fromDir != "" {
		dirs = append(dirs, fromDir)
	}
	dirs = append(dirs, ".")
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}
