package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/castorhq/castor/internal"
	"github.com/castorhq/castor/pkg/logger"
	"github.com/mitchellh/go-homedir"
)

var log = logger.Get("Main")

// main is the entry point to the program. The user's Castor
// configuration is loaded from their config directory (or the path
// provided via -config) before the server is brought up; the server
// runs until SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging output")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	} else {
		logger.SetMinLoggingLevel(logger.INFO.Level())
	}

	config := internal.CastorConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration from %s: %s\n", *configPath, err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Castor stopped due to error: %s\n", err.Error())
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Castor shut down\n")
}

func defaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "castor.yaml"
	}

	return filepath.Join(home, ".config", "castor", "castor.yaml")
}
