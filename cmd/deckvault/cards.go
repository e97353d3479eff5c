package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/cards/bulkdata"
	"github.com/ramonehamilton/commander-vault/internal/cards/imagecache"
	"github.com/ramonehamilton/commander-vault/internal/ui/styles"
)

var cardCmd = &cobra.Command{
	Use:   "card <name>",
	Short: "Show a card from the card database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := vault.lookup.GetCardByName(ctx, args[0])
		if err != nil {
			return err
		}

		var sb strings.Builder
		sb.WriteString(styles.Title.Render(c.Name))
		if m := c.Metadata; m != nil {
			if m.ManaCost != "" {
				sb.WriteString("  " + m.ManaCost)
			}
			sb.WriteString("\n" + m.TypeLine)
			if m.OracleText != "" {
				sb.WriteString("\n\n" + m.OracleText)
			}
			if len(m.ColorIdentity) > 0 {
				sb.WriteString("\n\nColor identity: " + strings.Join(m.ColorIdentity, ""))
			}
			if m.PriceUSD != "" {
				sb.WriteString("\nPrice: $" + m.PriceUSD)
			}
		}
		if c.SetCode != "" {
			set := strings.ToUpper(c.SetCode)
			if name := vault.sets.SetNames(ctx, []string{c.SetCode})[c.SetCode]; name != set {
				set = name + " (" + set + ")"
			}
			sb.WriteString("\nSet: " + set)
			if c.CollectorNumber != "" {
				sb.WriteString(" #" + c.CollectorNumber)
			}
		}
		fmt.Println(styles.Box.Render(sb.String()))
		return nil
	},
}

var (
	imageSize   string
	imageOutput string
)

var cardImageCmd = &cobra.Command{
	Use:   "image <name>",
	Short: "Download a card image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := vault.lookup.GetCardByName(ctx, args[0])
		if err != nil {
			return err
		}
		if c.Metadata == nil || c.Metadata.ImageURI == "" {
			return fmt.Errorf("no image known for %s", c.Name)
		}

		size := imagecache.ImageSize(imageSize)
		cached := vault.images.IsCached(c.Metadata.ImageURI, size)
		data, err := vault.images.GetImage(ctx, c.Metadata.ImageURI, size)
		if err != nil {
			return err
		}

		path := imageOutput
		if path == "" {
			path = strings.ReplaceAll(strings.ToLower(c.Name), " ", "_") + ".jpg"
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		source := "downloaded"
		if cached {
			source = "from cache"
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Saved %s (%s, %s)", path, styles.FormatBytes(int64(len(data))), source)))
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the card-data cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cacheStatsCmd.RunE(cmd, args)
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache usage per namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !vault.store.Available() {
			fmt.Println(styles.MutedText.Render("Caching is disabled (cache.medium = none)"))
			return nil
		}
		stats, err := vault.store.Stats()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			styles.Header.Render("NAMESPACE"),
			styles.Header.Render("ENTRIES"),
			styles.Header.Render("STALE"),
			styles.Header.Render("SIZE"),
			styles.Header.Render("TTL"),
			styles.Header.Render("OLDEST"),
		)
		var total int64
		for _, st := range stats {
			oldest := "-"
			if !st.Oldest.IsZero() {
				oldest = st.Oldest.Local().Format("2006-01-02 15:04")
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
				st.Namespace, st.Entries, st.Stale, styles.FormatBytes(st.Bytes), formatTTL(st.TTL), oldest)
			total += st.Bytes
		}
		_ = w.Flush()

		fmt.Printf("\n%s used", styles.FormatBytes(total))
		if q := vault.cfg.Cache.QuotaBytes; q > 0 {
			fmt.Printf(" of %s", styles.FormatBytes(q))
		}
		fmt.Printf(" (%s)\n", vault.cfg.Cache.Medium)
		return nil
	},
}

func formatTTL(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [namespace]",
	Short: "Remove cached entries",
	Long: `Remove cached entries of one namespace (cards, images, bulk, sets) or of
all namespaces.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			if err := vault.store.ClearAll(); err != nil {
				return err
			}
			fmt.Println(styles.FormatSuccess("Cache cleared"))
			return nil
		}
		ns, err := cache.ParseNamespace(args[0])
		if err != nil {
			return err
		}
		if err := vault.store.Clear(ns); err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Cleared %s cache", ns)))
		return nil
	},
}

var bulkType string

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Manage the offline card database",
}

var bulkRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download the latest bulk card data",
	Long: `Download a Scryfall bulk data file and cache it. Card lookups use the
cached file before asking the API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Downloading %s...\n", bulkType)
		ds, err := vault.bulk.Refresh(cmd.Context(), bulkType)
		if err != nil {
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("Loaded %d cards (published %s)",
			len(ds.Cards), ds.UpdatedAt.Local().Format("2006-01-02 15:04"))))
		return nil
	},
}

func init() {
	cardImageCmd.Flags().StringVar(&imageSize, "size", string(imagecache.ImageSizeNormal), "small, normal, large or art_crop")
	cardImageCmd.Flags().StringVarP(&imageOutput, "output", "o", "", "Output file (default <card_name>.jpg)")
	cardCmd.AddCommand(cardImageCmd)

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)

	bulkRefreshCmd.Flags().StringVar(&bulkType, "type", bulkdata.DefaultType, "Bulk data type")
	bulkCmd.AddCommand(bulkRefreshCmd)

	rootCmd.AddCommand(cardCmd, cacheCmd, bulkCmd)
}
