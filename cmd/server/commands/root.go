// Package commands implements the weodash command line: the dashboard API
// server and a one-shot filtered export.
package commands

import (
	"context"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"weodash/internal/config"
	"weodash/internal/engine"
)

var (
	configFile string
	dataPath   string
	logLevel   string

	conf config.Config
)

func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		return err
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weodash",
		Short:         "IMF WEO forecast dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var used string
			var err error
			conf, used, err = config.Load(configFile)
			if err != nil {
				return err
			}
			if dataPath != "" {
				conf.DataPath = dataPath
			}
			if logLevel != "" {
				conf.LogLevel = logLevel
			}
			log.SetLevel(parseLevel(conf.LogLevel))

			if used != "" {
				log.Infof("config loaded from %s", used)
			}
			return conf.Validate()
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/weo-dashboard/config.yaml)")
	root.PersistentFlags().StringVar(&dataPath, "data", "", "spreadsheet to load (overrides "+config.DataPathEnv+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, error or off")

	root.AddCommand(serveCmd(), exportCmd())
	return root
}

// loadTable reads the configured spreadsheet; every session calls it.
func loadTable(ctx context.Context) (*engine.Table, error) {
	return engine.Load(ctx, conf.DataPath, conf.Loader)
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}
