package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
	"github.com/ramonehamilton/commander-vault/internal/ui/styles"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "List and manage branches of the active deck",
	Long: `List and manage branches of the active deck.

Examples:
  deckvault branch                        # List branches
  deckvault branch create budget          # Fork from the current version
  deckvault branch create cedh --from main --at 1.2.0
  deckvault branch create rebuild --scratch
  deckvault branch switch budget`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mf, err := vault.decks.Manifest(cmd.Context(), "")
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.Header.Render("BRANCH"),
			styles.Header.Render("VERSION"),
			styles.Header.Render("COMMITS"),
			styles.Header.Render("FORKED FROM"),
		)
		for _, b := range mf.Branches {
			origin := "-"
			if b.ParentBranch != "" {
				origin = b.ParentBranch + "@" + b.ForkedFromVersion
			}
			version := b.CurrentVersion
			if _, ok := mf.Stashes[b.Name]; ok {
				version += styles.WarningText.Render(" *")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				styles.FormatCurrent(b.Name, b.Name == mf.CurrentBranch), version, len(b.Versions), origin)
		}
		return w.Flush()
	},
}

var (
	branchFrom    string
	branchAt      string
	branchScratch bool
)

var branchCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a branch without switching to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mf, err := vault.decks.CreateBranch(cmd.Context(), manifest.BranchOptions{
			Name:          args[0],
			SourceBranch:  branchFrom,
			SourceVersion: branchAt,
			FromScratch:   branchScratch,
		})
		if err != nil {
			return err
		}
		b := mf.Branch(args[0])
		if branchScratch {
			fmt.Println(styles.FormatSuccess(fmt.Sprintf("Created empty branch %s", styles.Highlighted.Render(b.Name))))
			return nil
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Created branch %s from %s",
			styles.Highlighted.Render(b.Name), styles.FormatRef(b.ParentBranch, b.ForkedFromVersion))))
		return nil
	},
}

var branchSwitchCmd = &cobra.Command{
	Use:     "switch <name>",
	Aliases: []string{"checkout"},
	Short:   "Make a branch current",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := vault.decks.SwitchBranch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Switched to %s (%d cards)",
			styles.FormatRef(loaded.Manifest.CurrentBranch, loaded.Manifest.CurrentVersion), loaded.Working().Count)))
		if loaded.Stash != nil {
			fmt.Println(styles.FormatWarning("This branch has uncommitted changes"))
		}
		return nil
	},
}

var branchDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a branch and its history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := vault.decks.DeleteBranch(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Deleted branch %s", args[0])))
		return nil
	},
}

var branchRenameCmd = &cobra.Command{
	Use:     "rename <old> <new>",
	Aliases: []string{"mv"},
	Short:   "Rename a branch",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := vault.decks.RenameBranch(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Renamed branch %s to %s", args[0], args[1])))
		return nil
	},
}

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Inspect the working copy of the current branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ok, err := vault.decks.ApplyStash(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(styles.MutedText.Render("No uncommitted changes"))
			return nil
		}
		fmt.Printf("Working copy of %s: %d cards, last edited %s\n",
			styles.FormatRef(d.Branch, d.Version), d.Count, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var stashDropCmd = &cobra.Command{
	Use:   "drop [branch]",
	Short: "Discard uncommitted changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch := ""
		if len(args) == 1 {
			branch = args[0]
		}
		if err := vault.decks.DropStash(cmd.Context(), branch); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess("Uncommitted changes discarded"))
		return nil
	},
}

var maybeCmd = &cobra.Command{
	Use:   "maybe",
	Short: "List the maybeboard of the active deck",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := vault.decks.Reload(cmd.Context())
		if err != nil {
			return err
		}
		mb := loaded.Maybeboard
		if mb.Count() == 0 {
			fmt.Println(styles.MutedText.Render("Maybeboard is empty"))
			return nil
		}
		for _, name := range mb.CategoryNames() {
			fmt.Println(styles.Title.Render(name))
			for _, c := range mb.Categories[name] {
				fmt.Printf("  %dx %s\n", c.Quantity, c.Name)
			}
		}
		return nil
	},
}

var maybeCategory string

var maybeAddCmd = &cobra.Command{
	Use:   "add <card>",
	Short: "Put a card on the maybeboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loaded, err := vault.decks.Reload(ctx)
		if err != nil {
			return err
		}
		mb := loaded.Maybeboard
		mb.Add(maybeCategory, resolveCard(ctx, args[0], 1))
		if err := vault.decks.SaveMaybeboard(ctx, mb); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Added %s to the maybeboard", args[0])))
		return nil
	},
}

var maybeRemoveCmd = &cobra.Command{
	Use:     "remove <card>",
	Aliases: []string{"rm"},
	Short:   "Take a card off the maybeboard",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loaded, err := vault.decks.Reload(ctx)
		if err != nil {
			return err
		}
		mb := loaded.Maybeboard
		category := maybeCategory
		if category == "" {
			category = deck.DefaultMaybeboardCategory
		}
		if !mb.Remove(category, args[0]) {
			return fmt.Errorf("%s is not on the maybeboard under %s", args[0], category)
		}
		return vault.decks.SaveMaybeboard(ctx, mb)
	},
}

func init() {
	branchCreateCmd.Flags().StringVar(&branchFrom, "from", "", "Branch to fork (default current)")
	branchCreateCmd.Flags().StringVar(&branchAt, "at", "", "Version to fork at (default the branch's current version)")
	branchCreateCmd.Flags().BoolVar(&branchScratch, "scratch", false, "Start with an empty deck and no history")
	branchCmd.AddCommand(branchCreateCmd, branchSwitchCmd, branchDeleteCmd, branchRenameCmd)

	stashCmd.AddCommand(stashDropCmd)

	maybeCmd.PersistentFlags().StringVar(&maybeCategory, "category", "", "Maybeboard category")
	maybeCmd.AddCommand(maybeAddCmd, maybeRemoveCmd)

	rootCmd.AddCommand(branchCmd, stashCmd, maybeCmd)
}
