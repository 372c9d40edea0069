// Package main provides the playkeeper configuration tool.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/playkeeper/internal/infra/config"
	"github.com/osa030/playkeeper/internal/infra/logger"
)

var (
	app        = kingpin.New("playkeeper", "Playback session orchestrator configuration tool")
	configPath = app.Flag("config", "Path to config file").Default("config/playkeeper.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	checkCmd    = app.Command("check", "Load and validate the config file, then exit")
	defaultsCmd = app.Command("defaults", "Print the effective default configuration as YAML")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stderr", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	switch command {
	case checkCmd.FullCommand():
		if err := runCheck(*configPath); err != nil {
			zlog.Error().Msgf("Config check failed: %v", err)
			os.Exit(1)
		}
	case defaultsCmd.FullCommand():
		if err := runDefaults(); err != nil {
			zlog.Error().Msgf("Failed to render defaults: %v", err)
			os.Exit(1)
		}
	}
}

// runCheck loads the config the same way an embedding bot would and reports
// the result.
func runCheck(path string) error {
	zlog.Info().Msgf("Loading config from %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	zlog.Info().Msgf("Config OK: tick=%v throttle=%v idle=%v cleanup=%v",
		cfg.Display.TickInterval(), cfg.Display.Throttle(), cfg.Activity.IdleAfter(), cfg.Cleanup.Delay())
	if !cfg.Spotify.Enabled() {
		zlog.Info().Msg("Spotify resolver not configured, suggestion enrichment disabled")
	}
	return nil
}

// runDefaults prints the configuration with all defaults applied.
func runDefaults() error {
	cfg, err := config.Default()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
