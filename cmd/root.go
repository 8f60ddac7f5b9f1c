package cmd

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/pathkit/pathkit/config"
	"github.com/pathkit/pathkit/loggers/cli"
	"github.com/pathkit/pathkit/metrics"
	"github.com/pathkit/pathkit/shutdown"
	"github.com/pathkit/pathkit/system"
)

var (
	configPath  = config.DefaultLocation
	debug       = false
	showVersion = false
)

var root = &cobra.Command{
	Use:           "pathkit",
	Short:         "Walk, search and clean directory trees",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(system.Version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultLocation, "set the location for the configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "pass in order to run pathkit in debug mode")
	root.Flags().BoolVar(&showVersion, "version", false, "show the version and exit")

	root.AddCommand(cleanCmd)
	root.AddCommand(walkCmd)
	root.AddCommand(findCmd)
}

// Execute runs the command line application. Paths registered for deletion
// on shutdown are removed before the process exits, whether a command
// succeeds, fails, or the process is interrupted.
func Execute() {
	hook := shutdown.Default().Hook()

	err := root.Execute()
	hook.Run()
	writeMetrics()
	if err != nil {
		log.WithField("error", err).Error("command failed")
		os.Exit(1)
	}
}

func initConfig() error {
	c, err := config.FromFile(configPath)
	if err != nil {
		return err
	}
	if debug {
		c.Debug = true
	}
	config.Set(c)
	configureLogging(c.Debug)
	log.WithField("path", c.GetPath()).Debug("loaded configuration")
	return nil
}

func configureLogging(debug bool) {
	cli.Default.Traces = debug
	log.SetHandler(cli.Default)
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func writeMetrics() {
	p := config.Get().MetricsTextfile
	if p == "" {
		return
	}
	if err := metrics.WriteTextfile(p); err != nil {
		log.WithField("error", errors.WithStackIf(err)).Warn("failed to write metrics")
	}
}
