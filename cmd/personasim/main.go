// Command personasim plays persona-vs-persona games against a UCI engine and
// saves the PGNs with a CSV summary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var rootCmd = &cobra.Command{
	Use:           "personasim",
	Short:         "Batch-run persona simulations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Print the bcrypt hash to use as ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if n := len(args[0]); n < 8 || n > 72 {
			return fmt.Errorf("token must be 8-72 bytes, got %d", n)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func main() {
	rootCmd.AddCommand(runCmd, hashTokenCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
