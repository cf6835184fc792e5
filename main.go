package main

import (
	"os"

	"github.com/geode-native/depmanifest/cli"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
	clitool "github.com/urfave/cli/v2"
)

const logLevelEnv = "DEPMANIFEST_LOG_LEVEL"

func main() {
	logger := newLogger()
	app := &clitool.App{
		Name:     "depmanifest",
		Usage:    "resolve native dependency manifests and generate build integration files",
		Version:  cli.Version,
		Commands: cli.GetCommands(logger),
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// newLogger configures the shared gofrog logger, so package level log calls follow the same level.
func newLogger() *log.Logger {
	logger := log.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(os.Getenv(logLevelEnv)))
	return logger
}
