package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/kerbaras/mangafeed/pkg/sources"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search for manga",
	Long:  "Search for manga on MangaDex and display results in a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		history := services.NewSearchHistory(s.repo)
		if err := history.Load(ctx); err != nil {
			return err
		}
		if showHistory, _ := cmd.Flags().GetBool("history"); showHistory {
			for i, q := range history.Entries() {
				fmt.Printf("%2d  %s\n", i+1, q)
			}
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("a query is required (or use --history)")
		}

		pages, _ := cmd.Flags().GetInt("pages")
		query := feed.Query{Text: strings.Join(args, " "), Filters: searchFilters(cmd)}

		f := feed.New(feed.SourceFetch(s.source), feed.WithDebounce(0), feed.WithLogger(s.logger))
		defer f.Close()

		f.SetQuery(query, feed.SetOptions{})
		f.Wait()
		for i := 1; i < pages && f.State().HasMore; i++ {
			if err := f.LoadMore(ctx); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
		}

		state := f.State()
		if state.Err != nil {
			return fmt.Errorf("search failed: %w", state.Err)
		}
		if err := history.Add(ctx, query.Text); err != nil {
			s.logger.Warn("failed to save search history", "err", err)
		}
		if len(state.Entries) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		var (
			purple = lipgloss.Color("99")

			headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
			cellStyle   = lipgloss.NewStyle().Padding(0, 1)
		)

		t := table.New().
			Border(lipgloss.HiddenBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(purple)).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				default:
					return cellStyle
				}
			}).
			Headers("#", "Title", "Status", "ID")

		for i, manga := range state.Entries {
			t.Row(fmt.Sprintf("%d", i+1), truncateString(manga.Title, 58), manga.Status, manga.Key)
		}

		fmt.Println(t)
		if state.HasMore {
			fmt.Printf("💡 More results available, use --pages %d\n", pages+1)
		}
		return nil
	},
}

// searchFilters turns filter flags into source filter values.
func searchFilters(cmd *cobra.Command) []sources.FilterValue {
	var filters []sources.FilterValue
	tags, _ := cmd.Flags().GetStringSlice("tag")
	excluded, _ := cmd.Flags().GetStringSlice("exclude-tag")
	if len(tags) > 0 || len(excluded) > 0 {
		filters = append(filters, sources.FilterValue{ID: "tags", Included: tags, Excluded: excluded})
	}
	if status, _ := cmd.Flags().GetStringSlice("status"); len(status) > 0 {
		filters = append(filters, sources.FilterValue{ID: "status", Included: status})
	}
	if sort, _ := cmd.Flags().GetString("sort"); sort != "" {
		filters = append(filters, sources.FilterValue{ID: "sort", Included: []string{sort}})
	}
	return filters
}

func init() {
	searchCmd.Flags().Int("pages", 1, "Number of result pages to load")
	searchCmd.Flags().StringSlice("tag", nil, "Only show manga with these tag IDs")
	searchCmd.Flags().StringSlice("exclude-tag", nil, "Hide manga with these tag IDs")
	searchCmd.Flags().StringSlice("status", nil, "Publication status (ongoing, completed, hiatus, cancelled)")
	searchCmd.Flags().String("sort", "", "Sort by (relevance, latestUploadedChapter, followedCount, ...)")
	searchCmd.Flags().Bool("history", false, "Show recent searches")

	rootCmd.AddCommand(searchCmd)
}
