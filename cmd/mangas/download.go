package cmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download [manga-name] [chapters]",
	Short: "Download manga chapters",
	Long: `Download chapters of a library manga as EPUB files.

Without a chapter selection the next --next unread chapters are downloaded.
The saved chapter filters of the manga apply.

Examples:
  mangas download "One Piece" 1-10
  mangas download "Berserk" --next 3 --device kindle-paperwhite`,
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
		fmt.Printf("📚 Found '%s' in library\n", manga.Title)

		device, _ := cmd.Flags().GetString("device")
		c, downloader, err := s.controller(ctx, manga, device)
		if err != nil {
			return err
		}
		return runDownload(cmd, c, downloader, args)
	},
}

func runDownload(cmd *cobra.Command, c *services.MangaController, downloader *services.Downloader, args []string) error {
	ctx := cmd.Context()
	b := c.Bindings()

	var selected []data.Chapter
	if len(args) > 1 {
		var err error
		if selected, err = parseChapterSelection(args[1], b.Chapters); err != nil {
			return err
		}
	} else {
		next, _ := cmd.Flags().GetInt("next")
		selected = b.NextUnread(next, downloader)
	}
	if len(selected) == 0 {
		fmt.Println("Nothing to download.")
		return nil
	}
	fmt.Printf("📥 Downloading %d chapter(s)\n", len(selected))

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case p := <-downloader.Progress():
				printProgress(p)
			case <-done:
				for len(downloader.Progress()) > 0 {
					printProgress(<-downloader.Progress())
				}
				return
			}
		}
	}()

	_, err := downloader.DownloadChapters(ctx, b.Manga, selected)
	close(done)
	wg.Wait()

	finished := 0
	for _, ch := range selected {
		if path, ok := downloader.Path(ch.ID()); ok {
			finished++
			fmt.Printf("📖 %s\n", path)
		}
	}
	fmt.Printf("\n✅ %d of %d chapter(s) downloaded\n", finished, len(selected))
	if err != nil {
		return errors.Join(errors.New("some chapters failed"), err)
	}
	return nil
}

func printProgress(p services.DownloadProgress) {
	switch {
	case p.Err != nil:
		fmt.Printf("  ❌ %s: %v\n", p.Label, p.Err)
	case p.Status == data.DownloadFinished:
		fmt.Printf("  ✅ %s\n", p.Label)
	case p.TotalPages > 0:
		fmt.Printf("  %s: %d/%d pages\n", p.Label, p.CurrentPage, p.TotalPages)
	}
}

func init() {
	downloadCmd.Flags().Int("next", 5, "Number of unread chapters to download when no selection is given")
	downloadCmd.Flags().StringP("device", "d", "", "Optimize pages for an e-reader (see 'mangas kindle --list-devices')")

	rootCmd.AddCommand(downloadCmd)
}
