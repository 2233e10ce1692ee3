package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var markCmd = &cobra.Command{
	Use:   "mark [manga-name] [chapters]",
	Short: "Mark chapters as read or unread",
	Long: `Mark chapters as read, unread, or record the page reached in one chapter.

Examples:
  mangas mark "One Piece" 1-100
  mangas mark "One Piece" 12 --unread
  mangas mark "One Piece" 101 --page 7
  mangas mark "One Piece" --tracker 150`,
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
		c, _, err := s.controller(ctx, manga, "")
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("tracker") {
			lastRead, _ := cmd.Flags().GetFloat64("tracker")
			needed, target := c.TrackerSyncTarget(lastRead)
			if !needed {
				fmt.Println("✅ Reading history is already up to date")
				return nil
			}
			if err := c.MarkRead(ctx, chapterKeys(target)); err != nil {
				return err
			}
			fmt.Printf("✅ Marked %d chapter(s) up to %g as read\n", len(target), lastRead)
			return nil
		}

		if len(args) < 2 {
			return fmt.Errorf("a chapter selection is required")
		}
		selected, err := parseChapterSelection(args[1], c.Bindings().Chapters)
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return fmt.Errorf("no chapters match %q", args[1])
		}

		unread, _ := cmd.Flags().GetBool("unread")
		switch {
		case cmd.Flags().Changed("page"):
			if len(selected) != 1 {
				return fmt.Errorf("--page needs exactly one chapter, got %d", len(selected))
			}
			page, _ := cmd.Flags().GetInt("page")
			if page < 1 {
				return fmt.Errorf("pages start at 1")
			}
			if err := c.SetProgress(ctx, selected[0].Key, page-1); err != nil {
				return err
			}
			fmt.Printf("📖 %s: page %d\n", selected[0].Label(), page)
		case unread:
			if err := c.MarkUnread(ctx, chapterKeys(selected)); err != nil {
				return err
			}
			fmt.Printf("✅ Marked %d chapter(s) as unread\n", len(selected))
		default:
			if err := c.MarkRead(ctx, chapterKeys(selected)); err != nil {
				return err
			}
			fmt.Printf("✅ Marked %d chapter(s) as read\n", len(selected))
		}

		fmt.Println(describeVerdict(c.Bindings().Verdict))
		return nil
	},
}

func init() {
	markCmd.Flags().Bool("unread", false, "Mark as unread instead")
	markCmd.Flags().Int("page", 0, "Record the page reached instead of marking the chapter read")
	markCmd.Flags().Float64("tracker", 0, "Sync with a tracker's last read chapter number")

	rootCmd.AddCommand(markCmd)
}
