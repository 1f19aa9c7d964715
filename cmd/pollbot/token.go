package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdelaire/pollbot/internal/keychain"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the bot token in the system keychain",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <account> [token]",
	Short: "Store a bot token; reads it from stdin when not given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := args[0]

		var token string
		if len(args) == 2 {
			token = args[1]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading token from stdin: %w", err)
			}
			token = line
		}

		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("token is empty")
		}
		if err := keychain.Set(account, token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %q. Set keychain_account: %s in your config.\n", account, account)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	rootCmd.AddCommand(tokenCmd)
}
