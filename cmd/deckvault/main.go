// Command deckvault keeps versioned Commander decks: commit history,
// branches, stashed working copies and a cached card database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-vault/internal/ui/styles"
	"github.com/ramonehamilton/commander-vault/internal/version"
)

var (
	configPath string
	verbose    bool

	// vault is built before every command that touches decks or cards.
	vault *app
)

var rootCmd = &cobra.Command{
	Use:     "deckvault",
	Short:   "Version-controlled Commander deck vault",
	Version: version.Version,
	Long: `Keep Commander decks under version control.

Every commit records a new version of the deck. Branches hold alternative
builds, and edits made with add/remove stay in the branch's working copy
until they are committed.

Quick start:
  deckvault new "Atraxa Superfriends" --commander "Atraxa, Praetors' Voice"
  deckvault add "Sol Ring"
  deckvault commit -m "Add ramp"
  deckvault log`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), configPath, verbose)
		if err != nil {
			return err
		}
		vault = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if vault == nil {
			return nil
		}
		err := vault.Close()
		vault = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default $DECKVAULT_HOME/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if vault != nil {
			_ = vault.Close()
		}
		os.Stderr.WriteString(styles.FormatError(err.Error()) + "\n")
		stop()
		os.Exit(1)
	}
}
