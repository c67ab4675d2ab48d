// Command trader prices and submits multi-leg option strategies.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"auction-trader/internal/cli"
	"auction-trader/internal/config"
	"auction-trader/internal/logging"
)

func main() {
	// --config has to be known before the command tree is built.
	pre := pflag.NewFlagSet("trader", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	configDir := pre.String("config", "", "")
	pre.BoolP("help", "h", false, "")
	_ = pre.Parse(os.Args[1:])

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dir := *configDir
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	logCfg.FilePath = filepath.Join(dir, "logs", "trader.log")
	logger := logging.NewLoggerWithConfig(logCfg)

	if err := cli.NewRootCmd(cfg, logger).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
