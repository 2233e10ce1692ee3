package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var epubCmd = &cobra.Command{
	Use:   "epub [manga-name] [chapters]",
	Short: "List or delete downloaded chapter EPUBs",
	Long: `List the EPUB files of downloaded chapters, or delete them with --delete.

Examples:
  mangas epub "One Piece"
  mangas epub "One Piece" 1-10 --delete`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		manga, err := findManga(ctx, s, args[0])
		if err != nil {
			return err
		}
		c, downloader, err := s.controller(ctx, manga, "")
		if err != nil {
			return err
		}

		list := c.Bindings().Chapters
		if len(args) > 1 {
			if list, err = parseChapterSelection(args[1], list); err != nil {
				return err
			}
		}

		remove, _ := cmd.Flags().GetBool("delete")
		count := 0
		for _, ch := range list {
			path, ok := downloader.Path(ch.ID())
			if !ok {
				continue
			}
			count++
			if remove {
				if err := downloader.Delete(ctx, ch.ID()); err != nil {
					return err
				}
				fmt.Printf("🗑️  %s\n", ch.Label())
				continue
			}
			fmt.Printf("📖 %-30s %s\n", truncateString(ch.Label(), 30), path)
		}

		if count == 0 {
			fmt.Println("No downloaded chapters. Use 'mangas download' to create EPUBs.")
		}
		return nil
	},
}

func init() {
	epubCmd.Flags().Bool("delete", false, "Delete the selected EPUBs")

	rootCmd.AddCommand(epubCmd)
}
