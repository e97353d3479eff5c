package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-vault/internal/cards/cardlookup"
	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/deckdiff"
	"github.com/ramonehamilton/commander-vault/internal/deckmanager"
	"github.com/ramonehamilton/commander-vault/internal/ui/styles"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

var (
	newCommander string
	newFormat    string
	newScheme    string
	newMessage   string
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a deck and commit its first version",
	Long: `Create a deck and commit its first version. The new deck becomes the
active deck.

Examples:
  deckvault new "Mono Green Stompy"
  deckvault new "Atraxa Superfriends" --commander "Atraxa, Praetors' Voice"
  deckvault new "Weekly Brew" --scheme date`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		d := vault.decks.NewDeck(name, newFormat)
		if newCommander != "" {
			var err error
			if d, err = vault.decks.NewCommanderDeck(ctx, name, newFormat, newCommander); err != nil {
				return err
			}
		}

		res, err := vault.decks.Save(ctx, d, deckmanager.SaveOptions{
			Message: newMessage,
			Scheme:  versioning.Scheme(newScheme),
		})
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Created %s at %s", name, styles.FormatRef(res.Branch, res.Version))))
		return nil
	},
}

// working returns an editable copy of the active deck's working state.
func working(ctx context.Context) (*deckmanager.Loaded, *deck.Deck, error) {
	loaded, err := vault.decks.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return loaded, loaded.Working().Clone(), nil
}

// resolveCard looks a card up, falling back to a bare entry when the card
// database does not know it.
func resolveCard(ctx context.Context, name string, qty int) deck.Card {
	c, err := vault.lookup.GetCardByName(ctx, name)
	if err != nil {
		if errors.Is(err, cardlookup.ErrNotFound) {
			fmt.Println(styles.FormatWarning(fmt.Sprintf("%s is not in the card database, adding it without metadata", name)))
		} else {
			vault.logger.Warn("card lookup failed", "card", name, "error", err)
		}
		return deck.Card{Name: name, Quantity: qty}
	}
	out := c.Clone()
	out.Quantity = qty
	return out
}

var (
	addQuantity int
	addCategory string
)

var addCmd = &cobra.Command{
	Use:   "add <card>",
	Short: "Add a card to the working copy",
	Long: `Add a card to the active deck's working copy. The change is kept on the
current branch until the next commit.

Examples:
  deckvault add "Sol Ring"
  deckvault add Forest -n 12
  deckvault add "Lurking Predators" --category enchantment`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, d, err := working(ctx)
		if err != nil {
			return err
		}

		c := resolveCard(ctx, args[0], addQuantity)
		var cat deck.Category
		if addCategory != "" {
			parsed, ok := deck.ParseCategory(addCategory)
			if !ok {
				return fmt.Errorf("unknown category: %s", addCategory)
			}
			cat = parsed
			d.AddCardTo(cat, c)
		} else {
			cat = d.AddCard(c)
		}

		if err := vault.decks.Stash(ctx, d); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Added %dx %s to %s (%d cards)", c.Quantity, c.Name, cat, d.Count)))
		return nil
	},
}

var removeQuantity int

var removeCmd = &cobra.Command{
	Use:     "remove <card>",
	Aliases: []string{"rm"},
	Short:   "Remove a card from the working copy",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, d, err := working(ctx)
		if err != nil {
			return err
		}
		if err := d.RemoveCard(args[0], removeQuantity); err != nil {
			return err
		}
		if err := vault.decks.Stash(ctx, d); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Removed %dx %s (%d cards)", removeQuantity, args[0], d.Count)))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show uncommitted changes of the active deck",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loaded, err := vault.decks.Reload(ctx)
		if err != nil {
			return err
		}
		st, err := vault.decks.Status(ctx, loaded.Working())
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", styles.Title.Render(st.Deck), styles.FormatRef(st.Branch, st.Version))
		fmt.Printf("%d cards, scheme %s\n", loaded.Working().Count, loaded.Manifest.Scheme())
		if st.Changes.Empty() {
			fmt.Println(styles.MutedText.Render("Nothing to commit"))
			return nil
		}
		fmt.Println()
		printChanges(st.Changes)
		fmt.Printf("\n%d card(s) changed, next version %s\n", st.Changes.TotalChanges, styles.Highlighted.Render(st.Suggested))
		return nil
	},
}

func printChanges(r *deckdiff.Result) {
	for _, c := range r.Added {
		fmt.Printf("  %s %dx %s\n", styles.Plus, c.NewQuantity, c.Name)
	}
	for _, c := range r.Removed {
		fmt.Printf("  %s %dx %s\n", styles.Minus, c.OldQuantity, c.Name)
	}
	for _, c := range r.Modified {
		fmt.Printf("  %s %s %d → %d\n", styles.Tilde, c.Name, c.OldQuantity, c.NewQuantity)
	}
}

var (
	commitMessage string
	commitVersion string
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record the working copy as a new version",
	Long: `Record the working copy as a new version on the current branch. The
version number is derived from the size of the change unless --version
is given. Committing an unchanged deck still records a patch version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loaded, err := vault.decks.Reload(ctx)
		if err != nil {
			return err
		}
		res, err := vault.decks.Save(ctx, loaded.Working(), deckmanager.SaveOptions{
			Message:         commitMessage,
			VersionOverride: commitVersion,
		})
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Committed %s (%d card(s) changed)",
			styles.FormatRef(res.Branch, res.Version), res.Changes.TotalChanges)))
		return nil
	},
}

var logBranch string

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the version history of a branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mf, err := vault.decks.Manifest(ctx, "")
		if err != nil {
			return err
		}
		history, err := vault.decks.History(ctx, "", logBranch)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("No versions committed yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.Header.Render("VERSION"),
			styles.Header.Render("DATE"),
			styles.Header.Render("CHANGES"),
			styles.Header.Render("MESSAGE"),
		)
		for i := len(history) - 1; i >= 0; i-- {
			v := history[i]
			version := v.Version
			if v.Version == mf.CurrentVersion && v.Branch == mf.CurrentBranch {
				version = styles.Highlighted.Render(version)
			}
			msg := v.Message
			if msg == "" {
				msg = styles.MutedText.Render("-")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", version, v.Timestamp.Local().Format("2006-01-02 15:04"), v.ChangeCount, msg)
		}
		return w.Flush()
	},
}

// parseRef reads "branch@version", "branch@" or a bare version.
func parseRef(s string) deckmanager.Ref {
	if branch, version, ok := strings.Cut(s, "@"); ok {
		return deckmanager.Ref{Branch: branch, Version: version}
	}
	return deckmanager.Ref{Version: s}
}

var diffCmd = &cobra.Command{
	Use:   "diff [from] [to]",
	Short: "Compare versions of the active deck",
	Long: `Compare versions of the active deck. Refs are a version, "branch@version"
or "branch@" for a branch's current version.

Without arguments the working copy is compared with the last commit. With
one argument that ref is compared with the current version.

Examples:
  deckvault diff
  deckvault diff 1.0.0
  deckvault diff main@1.0.0 budget@`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 0 {
			return diffWorking(ctx)
		}

		from := parseRef(args[0])
		var to deckmanager.Ref
		if len(args) == 2 {
			to = parseRef(args[1])
		}
		cmp, err := vault.decks.DiffVersions(ctx, "", from, to)
		if err != nil {
			return err
		}
		if cmp.Changes.Empty() {
			fmt.Printf("%s and %s are identical\n",
				styles.FormatRef(cmp.From.Branch, cmp.From.Version), styles.FormatRef(cmp.To.Branch, cmp.To.Version))
			return nil
		}
		fmt.Print(cmp.Unified)
		fmt.Printf("\n%d card(s) changed\n", cmp.Changes.TotalChanges)
		return nil
	},
}

func diffWorking(ctx context.Context) error {
	loaded, err := vault.decks.Reload(ctx)
	if err != nil {
		return err
	}
	if loaded.Stash == nil {
		fmt.Println(styles.MutedText.Render("Working copy matches the last commit"))
		return nil
	}
	unified, err := deckdiff.Unified(
		loaded.Deck.Branch+"@"+loaded.Deck.Version, "working copy", loaded.Deck, loaded.Stash)
	if err != nil {
		return err
	}
	changes := deckdiff.Diff(loaded.Deck, loaded.Stash)
	if changes.Empty() {
		fmt.Println(styles.MutedText.Render("Working copy matches the last commit"))
		return nil
	}
	fmt.Print(unified)
	fmt.Printf("\n%d card(s) changed\n", changes.TotalChanges)
	return nil
}

var schemeCmd = &cobra.Command{
	Use:   "scheme <semantic|date>",
	Short: "Change the versioning scheme of the active deck",
	Long: `Change the versioning scheme of the active deck. History is kept; the
current branch restarts at the new scheme's first version, which the next
commit records.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, err := versioning.ParseScheme(args[0])
		if err != nil {
			return err
		}
		mf, err := vault.decks.ChangeVersioningScheme(cmd.Context(), scheme)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Now using %s versions, next commit is %s", mf.VersioningScheme, mf.CurrentVersion)))
		return nil
	},
}

func init() {
	newCmd.Flags().StringVar(&newCommander, "commander", "", "Seed the deck with this commander")
	newCmd.Flags().StringVar(&newFormat, "format", deck.FormatCommander, "Deck format")
	newCmd.Flags().StringVar(&newScheme, "scheme", "", "Versioning scheme: semantic or date (default from config)")
	newCmd.Flags().StringVarP(&newMessage, "message", "m", "Initial version", "Commit message")

	addCmd.Flags().IntVarP(&addQuantity, "quantity", "n", 1, "Number of copies")
	addCmd.Flags().StringVar(&addCategory, "category", "", "File the card under this category")

	removeCmd.Flags().IntVarP(&removeQuantity, "quantity", "n", 1, "Number of copies")

	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message")
	commitCmd.Flags().StringVar(&commitVersion, "version", "", "Record this version instead of the computed one")

	logCmd.Flags().StringVarP(&logBranch, "branch", "b", "", "Branch to show (default current)")

	rootCmd.AddCommand(newCmd, addCmd, removeCmd, statusCmd, commitCmd, logCmd, diffCmd, schemeCmd)
}
