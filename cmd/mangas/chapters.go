package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kerbaras/mangafeed/pkg/chapters"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/spf13/cobra"
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters [manga-name]",
	Short: "Show the chapter list of a library manga",
	Long: `Show the sorted and filtered chapter list of a manga and the chapter to read next.

Sort and filter changes are saved for the manga.

Examples:
  mangas chapters "One Piece" --sort chapter --asc
  mangas chapters "Berserk" --filter unread --filter=-locked
  mangas chapters "Monster" --lang all --reset`,
	Args: cobra.MinimumNArgs(1),
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
		c, downloads, err := s.controller(ctx, manga, "")
		if err != nil {
			return err
		}
		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			if err := c.Refresh(ctx); err != nil {
				return err
			}
		}
		if err := applyListFlags(cmd, c); err != nil {
			return err
		}

		b := c.Recompute(ctx)
		printChapters(b, chapters.NewProgressIndex(b.History), downloads)
		return nil
	},
}

// applyListFlags feeds the sort and filter flags into the controller.
func applyListFlags(cmd *cobra.Command, c *services.MangaController) error {
	flags := cmd.Flags()
	if reset, _ := flags.GetBool("reset"); reset {
		c.SetSort(chapters.SortSourceOrder, false)
		for _, t := range []chapters.FilterType{chapters.FilterDownloaded, chapters.FilterUnread, chapters.FilterLocked} {
			c.RemoveFilter(t)
		}
		c.SetLanguage(nil)
		c.SetScanlators(nil)
	}

	if flags.Changed("sort") || flags.Changed("asc") {
		current := c.Bindings().Options
		option := current.Sort
		if name, _ := flags.GetString("sort"); flags.Changed("sort") {
			var ok bool
			if option, ok = chapters.ParseSortOption(name); !ok {
				return fmt.Errorf("unknown sort %q (source-order, chapter, upload-date)", name)
			}
		}
		ascending := current.Ascending
		if flags.Changed("asc") {
			ascending, _ = flags.GetBool("asc")
		}
		c.SetSort(option, ascending)
	}

	filters, _ := flags.GetStringSlice("filter")
	for _, f := range filters {
		opt, err := parseFilter(f)
		if err != nil {
			return err
		}
		c.SetFilter(opt)
	}
	cleared, _ := flags.GetStringSlice("no-filter")
	for _, f := range cleared {
		opt, err := parseFilter(f)
		if err != nil {
			return err
		}
		c.RemoveFilter(opt.Type)
	}

	if flags.Changed("lang") {
		lang, _ := flags.GetString("lang")
		if lang == "all" {
			c.SetLanguage(nil)
		} else {
			c.SetLanguage(&lang)
		}
	}
	if flags.Changed("scanlator") {
		groups, _ := flags.GetStringSlice("scanlator")
		c.SetScanlators(groups)
	}
	return nil
}

// parseFilter reads "unread" or "-unread" (exclude).
func parseFilter(s string) (chapters.FilterOption, error) {
	exclude := strings.HasPrefix(s, "-")
	name := strings.TrimPrefix(s, "-")
	for _, t := range []chapters.FilterType{chapters.FilterDownloaded, chapters.FilterUnread, chapters.FilterLocked} {
		if t.String() == name {
			return chapters.FilterOption{Type: t, Exclude: exclude}, nil
		}
	}
	return chapters.FilterOption{}, fmt.Errorf("unknown filter %q (downloaded, unread, locked)", s)
}

func printChapters(b services.Bindings, history *chapters.ProgressIndex, downloads services.DownloadOracle) {
	var (
		purple = lipgloss.Color("99")
		gray   = lipgloss.Color("245")

		headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true)
		cellStyle   = lipgloss.NewStyle().Padding(0, 1)
		readStyle   = cellStyle.Foreground(gray)
	)

	next := ""
	if b.Verdict.Kind == chapters.VerdictChapter {
		next = b.Verdict.Chapter.Key
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case history.IsCompleted(b.Chapters[row].Key):
				return readStyle
			default:
				return cellStyle
			}
		}).
		Headers("", "Chapter", "Uploaded", "Group", "State")

	for _, ch := range b.Chapters {
		marker := ""
		if ch.Key == next {
			marker = "▶"
		}
		uploaded := ""
		if ch.Uploaded != nil {
			uploaded = ch.Uploaded.Format("2006-01-02")
		}
		t.Row(marker, truncateString(ch.Label(), 50), uploaded,
			truncateString(strings.Join(ch.Scanlators, ", "), 24), chapterState(ch, history, downloads))
	}

	fmt.Printf("\n📖 %s (%d of %d chapters, %s)\n\n", b.Manga.Title, len(b.Chapters), b.Total, describeOptions(b.Options))
	fmt.Println(t)
	fmt.Println(describeVerdict(b.Verdict))
}

func chapterState(ch data.Chapter, history *chapters.ProgressIndex, downloads services.DownloadOracle) string {
	var states []string
	if entry, ok := history.Get(ch.Key); ok {
		if entry.Completed() {
			states = append(states, "read")
		} else {
			states = append(states, fmt.Sprintf("page %d", entry.Page+1))
		}
	}
	if downloads.Status(ch.ID()) == data.DownloadFinished {
		states = append(states, "downloaded")
	}
	if ch.Locked {
		states = append(states, "locked")
	}
	return strings.Join(states, ", ")
}

func describeOptions(o chapters.Options) string {
	dir := "descending"
	if o.Ascending {
		dir = "ascending"
	}
	parts := []string{o.Sort.String() + " " + dir}
	for _, f := range o.Filters.Options() {
		if f.Exclude {
			parts = append(parts, "not "+f.Type.String())
		} else {
			parts = append(parts, f.Type.String())
		}
	}
	if o.Language != nil {
		parts = append(parts, "lang "+*o.Language)
	}
	if len(o.Scanlators) > 0 {
		parts = append(parts, "groups "+strings.Join(o.Scanlators, "/"))
	}
	return strings.Join(parts, ", ")
}

func describeVerdict(v chapters.Verdict) string {
	switch v.Kind {
	case chapters.VerdictChapter:
		if v.InProgress {
			return "▶ Continue " + v.Chapter.Label()
		}
		return "▶ Start " + v.Chapter.Label()
	case chapters.VerdictAllRead:
		return "✅ All chapters read"
	case chapters.VerdictAllLocked:
		return "🔒 All chapters are locked"
	}
	return "No chapters"
}

func init() {
	chaptersCmd.Flags().String("sort", "", "Sort by source-order, chapter or upload-date")
	chaptersCmd.Flags().Bool("asc", false, "Sort oldest first")
	chaptersCmd.Flags().StringSlice("filter", nil, "Filter by downloaded, unread or locked; prefix with - to exclude")
	chaptersCmd.Flags().StringSlice("no-filter", nil, "Remove a filter")
	chaptersCmd.Flags().String("lang", "", "Only show chapters in this language; 'all' shows every language")
	chaptersCmd.Flags().StringSlice("scanlator", nil, "Only show chapters from these groups")
	chaptersCmd.Flags().Bool("reset", false, "Reset sort and filters")
	chaptersCmd.Flags().Bool("refresh", false, "Fetch the latest chapter list first")

	rootCmd.AddCommand(chaptersCmd)
}
