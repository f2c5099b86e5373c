// Package main provides the entry point for the chifron CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chifron/chifron/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	envFile           string
	engine            string

	// cfg is loaded once in PersistentPreRunE and never modified after.
	cfg      *config.Config
	logClose = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "chifron",
		Short: "French number words, spoken",
		Long: paragraph(
			fmt.Sprintf("\nServe French number words %s over HTTP.", keyword("with audio")),
		),
		SilenceErrors:     false,
		SilenceUsage:      true,
		TraverseChildren:  true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: loadConfig,
		RunE:              runServe,
	}
)

// loadConfig reads an explicit --config file if given, then builds the
// immutable Config from viper and sets up logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	switch cmd.Name() {
	case "config", "man":
		return nil
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c

	closer, err := setupLog(cfg.Log)
	if err != nil {
		return err
	}
	logClose = closer

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	_ = logClose()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVarP(&engine, "engine", "e", "", "TTS engine (gtts, google, piper or mock)")

	// Config bindings
	_ = viper.BindPFlag("tts.engine", rootCmd.PersistentFlags().Lookup("engine"))

	rootCmd.AddCommand(serveCmd, sayCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := config.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	config.Prepare(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		defaultConfigFile = used
		return
	}
	// Defaults apply until "chifron config" creates this file.
	defaultConfigFile = filepath.Join(dirs[0], config.AppName+".yml")
}
