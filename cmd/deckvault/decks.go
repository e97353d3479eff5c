package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/deckmanager"
	"github.com/ramonehamilton/commander-vault/internal/decklist"
	"github.com/ramonehamilton/commander-vault/internal/storage/filestore"
	"github.com/ramonehamilton/commander-vault/internal/ui/styles"
)

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List and manage stored decks",
	Long: `List and manage stored decks.

Examples:
  deckvault decks                          # List decks
  deckvault decks open "Atraxa Superfriends"
  deckvault decks rename "Old Name" "New Name"
  deckvault decks delete "Old Brew" --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		decks, err := vault.decks.ListDecks(cmd.Context())
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			fmt.Println("No decks stored")
			fmt.Println("\nCreate one with: deckvault new <name>")
			return nil
		}

		active := vault.decks.ActiveDeck()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			styles.Header.Render("DECK"),
			styles.Header.Render("MODIFIED"),
			styles.Header.Render("SIZE"),
		)
		for _, d := range decks {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
				styles.FormatCurrent(d.Name, d.Name == active),
				d.LastModified.Local().Format("2006-01-02 15:04"),
				styles.FormatBytes(d.Size))
		}
		_ = w.Flush()
		fmt.Printf("\n%d deck(s)\n", len(decks))
		return nil
	},
}

var decksOpenCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Make a stored deck the active deck",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := vault.decks.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		mf := loaded.Manifest
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Opened %s at %s (%d cards)",
			styles.Title.Render(mf.DeckName), styles.FormatRef(mf.CurrentBranch, mf.CurrentVersion), loaded.Working().Count)))
		if loaded.Stash != nil {
			fmt.Println(styles.FormatWarning("The current branch has uncommitted changes"))
		}
		return nil
	},
}

var decksDeleteForce bool

var decksDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a deck and its whole history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !decksDeleteForce {
			fmt.Printf("Delete %s and every version of it?\n", styles.Highlighted.Render(name))
			fmt.Print("\nConfirm? [y/N] ")
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}
		}
		if err := vault.decks.DeleteDeck(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Deleted %s", name)))
		return nil
	},
}

var decksRenameCmd = &cobra.Command{
	Use:     "rename <old> <new>",
	Aliases: []string{"mv"},
	Short:   "Rename a stored deck",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := vault.decks.RenameDeck(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Renamed %s to %s", args[0], args[1])))
		return nil
	},
}

var decksWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print deck files as they change on disk",
	Long: `Print deck files as they are written or removed by other processes or
sync tools. Only available with the filesystem backend. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if vault.files == nil {
			return fmt.Errorf("watch needs the filesystem storage backend")
		}
		fmt.Printf("Watching %s\n", vault.files.Dir())
		err := vault.files.Watch(cmd.Context(), func(ev filestore.Event) {
			mark := styles.Plus
			if ev.Kind == filestore.DeckRemoved {
				mark = styles.Minus
			}
			fmt.Printf("  %s %s %s\n", mark, ev.Deck, styles.MutedText.Render(ev.Kind.String()))
		})
		if err != nil && cmd.Context().Err() == nil {
			return err
		}
		return nil
	},
}

var (
	exportFormat  string
	exportRef     string
	exportOutput  string
	exportHeaders bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the active deck as a decklist",
	Long: `Export the active deck as a decklist. By default the working copy is
written to stdout.

Examples:
  deckvault export
  deckvault export --format arena -o atraxa.txt
  deckvault export --ref main@1.0.0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, err := decklist.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		var d *deck.Deck
		if exportRef != "" {
			ref := parseRef(exportRef)
			if d, err = vault.decks.LoadVersion(ctx, "", ref.Branch, ref.Version); err != nil {
				return err
			}
		} else {
			loaded, err := vault.decks.Reload(ctx)
			if err != nil {
				return err
			}
			d = loaded.Working()
		}

		out, err := decklist.ExportDeck(d, &decklist.ExportOptions{Format: format, IncludeHeaders: exportHeaders})
		if err != nil {
			return err
		}
		if exportOutput == "" {
			fmt.Print(out.Content)
			return nil
		}
		path := exportOutput
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, out.Filename)
		}
		if err := os.WriteFile(path, []byte(out.Content), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Exported %d cards to %s", d.Count, path)))
		return nil
	},
}

var (
	importName    string
	importFormat  string
	importMessage string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create a deck from a decklist file",
	Long: `Create a deck from a decklist file ("-" reads stdin). Cards are looked
up in the card database; unknown cards are kept by name.

Examples:
  deckvault import atraxa.txt --name "Atraxa Superfriends"
  pbpaste | deckvault import - --name "Paste"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		parsed, err := decklist.Parse(text)
		if err != nil {
			return err
		}
		for _, w := range parsed.Warnings {
			fmt.Println(styles.FormatWarning(w))
		}

		name := importName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		if name == "" || name == "-" {
			return fmt.Errorf("--name is required when reading stdin")
		}

		d := vault.decks.NewDeck(name, importFormat)
		for _, e := range parsed.Entries {
			c := resolveCard(ctx, e.Name, e.Quantity)
			if e.SetCode != "" {
				c.SetCode = e.SetCode
				c.CollectorNumber = e.CollectorNumber
			}
			if e.Category != "" {
				d.AddCardTo(e.Category, c)
			} else {
				d.AddCard(c)
			}
		}

		res, err := vault.decks.Save(ctx, d, deckmanager.SaveOptions{Message: importMessage})
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Imported %s with %d cards at %s",
			name, res.Deck.Count, styles.FormatRef(res.Branch, res.Version))))
		return nil
	},
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open decklist: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read decklist: %w", err)
	}
	return string(data), nil
}

func init() {
	decksDeleteCmd.Flags().BoolVarP(&decksDeleteForce, "force", "f", false, "Skip confirmation prompt")
	decksCmd.AddCommand(decksOpenCmd, decksDeleteCmd, decksRenameCmd, decksWatchCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", string(decklist.FormatDecklist), "decklist, plaintext or arena")
	exportCmd.Flags().StringVar(&exportRef, "ref", "", "Export a committed version (version or branch@version)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file or directory instead of stdout")
	exportCmd.Flags().BoolVar(&exportHeaders, "headers", true, "Include category headers")

	importCmd.Flags().StringVar(&importName, "name", "", "Deck name (default the file name)")
	importCmd.Flags().StringVar(&importFormat, "format", deck.FormatCommander, "Deck format")
	importCmd.Flags().StringVarP(&importMessage, "message", "m", "Imported", "Commit message")

	rootCmd.AddCommand(decksCmd, exportCmd, importCmd)
}
