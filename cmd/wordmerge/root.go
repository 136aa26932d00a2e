package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "wordmerge",
	Short: "Fill DOCX merge-field templates with data",
	Long: `wordmerge renders Word templates whose MERGEFIELD instructions carry
directives such as name:upper(), loop(items) ... endloop or logo:image(50).

Data is read from JSON or YAML. Configuration comes from an optional YAML
file, a .env file and WORDMERGE_* environment variables, in that order.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := loadConfig()
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading WORDMERGE_* variables")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error, off)")
}

// loadConfig builds the configuration from the env file, the config file
// and the flags, installs it globally and sets up the package logger.
func loadConfig() (*wordmerge.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var (
		config *wordmerge.Config
		err    error
	)
	if cfgFile != "" {
		config, err = wordmerge.LoadConfigFile(cfgFile)
		if err != nil {
			return nil, err
		}
	} else {
		config = wordmerge.ConfigFromEnvironment()
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	wordmerge.SetGlobalConfig(config)
	wordmerge.SetLogger(wordmerge.NewLoggerWithFormat(os.Stderr, wordmerge.ParseLogLevel(config.LogLevel), config.LogFormat))
	return config, nil
}
