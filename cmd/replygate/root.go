package main

import (
	"fmt"
	"os"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "replygate",
	Short: "Replygate message gate",
	Long:  `Replygate decides which inbound chat messages deserve a reply before the agent runtime wakes up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.replygate/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("server.port", config.DefaultServerPort, "server port")
}
