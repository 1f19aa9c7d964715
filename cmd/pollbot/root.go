package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pollbot",
	Short: "Long-polling Telegram bot",
	Long: `pollbot long-polls the Telegram Bot API, dispatches every update of a
batch concurrently to the command router, and replies to the sender.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pollbot.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
