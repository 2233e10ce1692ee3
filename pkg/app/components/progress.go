package components

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kerbaras/mangafeed/pkg/app/styles"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
)

// ProgressTracker keeps the latest progress of every active download.
// Finished chapters are dropped; failed ones stay until Clear.
type ProgressTracker struct {
	downloads map[data.ChapterKey]services.DownloadProgress
	width     int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		downloads: make(map[data.ChapterKey]services.DownloadProgress),
		width:     width,
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

func (p *ProgressTracker) Update(progress services.DownloadProgress) {
	if progress.Status == data.DownloadFinished && progress.Err == nil {
		delete(p.downloads, progress.Key)
		return
	}
	p.downloads[progress.Key] = progress
}

func (p *ProgressTracker) Clear() {
	p.downloads = make(map[data.ChapterKey]services.DownloadProgress)
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.downloads) > 0
}

func (p *ProgressTracker) View() string {
	if len(p.downloads) == 0 {
		return ""
	}

	keys := make([]data.ChapterKey, 0, len(p.downloads))
	for k := range p.downloads {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b data.ChapterKey) int {
		return strings.Compare(a.String(), b.String())
	})

	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render("Downloads"))
	b.WriteString("\n")

	for _, key := range keys {
		progress := p.downloads[key]
		label := progress.Label
		if label == "" {
			label = key.ChapterKey
		}

		if progress.Err != nil {
			b.WriteString(styles.StatusError.Render(fmt.Sprintf("✗ %s: %s", label, progress.Err)))
			b.WriteString("\n")
			continue
		}

		status := styles.DownloadStyle(progress.Status).Render(progress.Status.String())
		line := fmt.Sprintf("%s %s", styles.TextStyle.Render(label), status)
		if progress.TotalPages > 0 {
			percentage := float64(progress.CurrentPage) / float64(progress.TotalPages) * 100
			line += styles.MutedStyle.Render(fmt.Sprintf(" %d/%d (%.0f%%)", progress.CurrentPage, progress.TotalPages, percentage))
			b.WriteString(line)
			b.WriteString("\n")
			b.WriteString(renderProgressBar(progress.CurrentPage, progress.TotalPages, p.width-4))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = min(max(filled, 0), width)

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}
