package cmd

import (
	"fmt"
	"strings"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [manga-name]",
	Short: "Add a manga to your library",
	Long:  "Search for a manga and add it to your library (stores metadata and the chapter list)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		manga := data.Manga{SourceKey: s.source.Key()}
		if id, _ := cmd.Flags().GetString("id"); id != "" {
			manga.Key = id
		} else {
			if len(args) == 0 {
				return fmt.Errorf("a manga name or --id is required")
			}
			query := strings.Join(args, " ")
			fmt.Printf("🔍 Searching for '%s'...\n", query)

			results, err := s.source.SearchManga(ctx, query, 1, nil)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(results.Entries) == 0 {
				fmt.Println("❌ No results found.")
				return nil
			}
			// Take the first result
			manga = results.Entries[0]
			fmt.Printf("✅ Found: %s (ID: %s)\n", manga.Title, manga.Key)
		}

		manga, list, err := s.library.Add(ctx, manga)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Added '%s' to library with %d chapters\n", manga.Title, len(list))
		fmt.Printf("💡 To download chapters, use: mangas download \"%s\" 1-10\n", manga.Title)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [manga-name]",
	Short: "Remove a manga from your library",
	Long:  "Remove a manga with its chapters, reading history and download records. Downloaded files are kept.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		manga, err := findManga(ctx, s, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if err := s.library.Remove(ctx, manga.SourceKey, manga.Key); err != nil {
			return err
		}
		fmt.Printf("🗑️  Removed '%s' from library\n", manga.Title)
		return nil
	},
}

func init() {
	addCmd.Flags().String("id", "", "Add by MangaDex manga ID instead of searching")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
}
