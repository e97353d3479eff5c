package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ramonehamilton/commander-vault/internal/storage"
	"github.com/ramonehamilton/commander-vault/internal/ui/styles"
)

// EnvBackupPassphrase supplies the backup passphrase non-interactively.
const EnvBackupPassphrase = "DECKVAULT_BACKUP_PASSPHRASE"

// readPassphrase prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassphrase(prompt string, confirm bool) (string, error) {
	if pw := os.Getenv(EnvBackupPassphrase); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print(prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if confirm {
		fmt.Print("Repeat passphrase: ")
		again, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if string(again) != string(pw) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(pw), nil
}

func backupManager() (*storage.BackupManager, error) {
	if vault.db == nil {
		return nil, fmt.Errorf("backups need the sqlite storage backend")
	}
	return storage.NewBackupManager(vault.db.Path()), nil
}

var (
	backupDir     string
	backupName    string
	backupEncrypt bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the deck database",
	Long: `Write a verified copy of the deck database. With --encrypt the copy is
sealed with a passphrase (read from the terminal or $DECKVAULT_BACKUP_PASSPHRASE).

Examples:
  deckvault backup
  deckvault backup --encrypt --dir /mnt/usb
  deckvault backup list
  deckvault backup restore ~/.commander-vault/backups/decks_20260314_090000.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bm, err := backupManager()
		if err != nil {
			return err
		}
		cfg := storage.DefaultBackupConfig()
		cfg.BackupDir = backupDir
		cfg.BackupName = backupName
		if backupEncrypt {
			cfg.Encrypt = true
			if cfg.EncryptionPassword, err = readPassphrase("Backup passphrase: ", true); err != nil {
				return err
			}
		}

		path, err := bm.Backup(cfg)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Backup written to " + path))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bm, err := backupManager()
		if err != nil {
			return err
		}
		dir := backupDir
		if dir == "" {
			dir = bm.GetBackupDir()
		}
		backups, err := bm.ListBackups(dir)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Printf("No backups in %s\n", dir)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.Header.Render("BACKUP"),
			styles.Header.Render("DATE"),
			styles.Header.Render("SIZE"),
			styles.Header.Render("ENCRYPTED"),
		)
		for _, b := range backups {
			enc := "no"
			if b.Encrypted {
				enc = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				b.Name, b.ModTime.Local().Format("2006-01-02 15:04"), styles.FormatBytes(b.Size), enc)
		}
		return w.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the deck database with a backup",
	Long: `Replace the deck database with a backup. The current database is kept
next to it with an .old suffix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bm, err := backupManager()
		if err != nil {
			return err
		}
		encrypted, err := storage.IsEncrypted(args[0])
		if err != nil {
			return err
		}
		password := ""
		if encrypted {
			if password, err = readPassphrase("Backup passphrase: ", false); err != nil {
				return err
			}
		}

		// The open connection would hold the old file.
		if err := vault.db.Close(); err != nil {
			return err
		}
		vault.db = nil

		if err := bm.Restore(args[0], password); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Restored " + args[0]))
		return nil
	},
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDir, "dir", "", "Backup directory (default next to the database)")
	backupCmd.Flags().StringVar(&backupName, "name", "", "Backup file name without extension")
	backupCmd.Flags().BoolVar(&backupEncrypt, "encrypt", false, "Encrypt the backup with a passphrase")
	backupCmd.AddCommand(backupListCmd, backupRestoreCmd)

	rootCmd.AddCommand(backupCmd)
}
