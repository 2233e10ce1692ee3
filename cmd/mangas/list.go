package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangafeed/pkg/feed"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/kerbaras/mangafeed/pkg/sources"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List all manga in your library",
	Long:  "Display the manga in your library in a formatted table, optionally fuzzy-filtered by title",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		query := feed.Query{Text: strings.Join(args, " ")}
		if status, _ := cmd.Flags().GetStringSlice("status"); len(status) > 0 {
			query.Filters = []sources.FilterValue{{ID: services.StatusFilter, Included: status}}
		}

		f := feed.New(services.LibraryFetch(s.repo, s.cfg.PageSize), feed.WithDebounce(0), feed.WithLogger(s.logger))
		defer f.Close()
		f.SetQuery(query, feed.SetOptions{})
		f.Wait()
		for f.State().HasMore {
			if err := f.LoadMore(ctx); err != nil {
				return err
			}
		}

		mangas := f.State().Entries
		if len(mangas) == 0 {
			fmt.Println("📚 No manga in library. Use 'mangas add' to follow a manga.")
			return nil
		}

		// Create table columns
		columns := []table.Column{
			{Title: "Name", Width: 40},
			{Title: "Source", Width: 10},
			{Title: "Status", Width: 12},
			{Title: "Chapters", Width: 10},
			{Title: "Unread", Width: 8},
			{Title: "Downloaded", Width: 12},
		}

		rows := []table.Row{}
		for _, manga := range mangas {
			stats, err := s.library.Stats(ctx, manga.SourceKey, manga.Key)
			if err != nil {
				return err
			}

			status := manga.Status
			if status == "" {
				status = "unknown"
			}
			rows = append(rows, table.Row{
				truncateString(manga.Title, 38),
				manga.SourceKey,
				status,
				fmt.Sprintf("%d", stats.Chapters),
				fmt.Sprintf("%d", stats.Unread),
				fmt.Sprintf("%d", stats.Downloaded),
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)

		st := table.DefaultStyles()
		st.Header = st.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		st.Selected = st.Selected.
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(false)
		t.SetStyles(st)

		fmt.Printf("\n📚 Library (%d manga)\n\n", len(mangas))
		fmt.Println(t.View())
		return nil
	},
}

func init() {
	listCmd.Flags().StringSlice("status", nil, "Only show manga with this publication status")

	rootCmd.AddCommand(listCmd)
}
