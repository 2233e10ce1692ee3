package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangafeed/pkg/data"
)

var (
	// Color palette
	Primary    = lipgloss.Color("#FF6B9D")
	Secondary  = lipgloss.Color("#C792EA")
	Success    = lipgloss.Color("#C3E88D")
	Warning    = lipgloss.Color("#FFCB6B")
	Error      = lipgloss.Color("#F07178")
	Info       = lipgloss.Color("#82AAFF")
	Muted      = lipgloss.Color("#546E7A")
	Background = lipgloss.Color("#263238")
	Foreground = lipgloss.Color("#EEFFFF")

	RoundedBorder = lipgloss.RoundedBorder()
	ThickBorder   = lipgloss.ThickBorder()
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(Foreground)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// SelectedStyle highlights the row under the cursor in line lists.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	CardStyle = lipgloss.NewStyle().
			Border(RoundedBorder).
			BorderForeground(Secondary).
			Padding(0, 2)

	ActiveCardStyle = lipgloss.NewStyle().
			Border(ThickBorder).
			BorderForeground(Primary).
			Padding(0, 2)

	StatusDownloading = lipgloss.NewStyle().
				Foreground(Info).
				Bold(true)

	StatusCompleted = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	StatusError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning)

	// Chapter rows
	ReadStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Faint(true)

	LockedStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Strikethrough(true)

	NextChapterStyle = lipgloss.NewStyle().
				Foreground(Warning).
				Bold(true)

	ProgressBarStyle = lipgloss.NewStyle().
				Foreground(Primary)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(Muted)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Background(lipgloss.Color("#37474F")).
			Padding(0, 2).
			Bold(true)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Padding(0, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true).
			MarginTop(1)

	InputStyle = lipgloss.NewStyle().
			Border(RoundedBorder).
			BorderForeground(Secondary).
			Padding(0, 1)

	FocusedInputStyle = lipgloss.NewStyle().
				Border(RoundedBorder).
				BorderForeground(Primary).
				Padding(0, 1)
)

// StatusStyle colors a publication status as reported by a source.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "ongoing":
		return StatusDownloading
	case "completed":
		return StatusCompleted
	case "hiatus":
		return StatusWarning
	case "cancelled":
		return StatusError
	default:
		return MutedStyle
	}
}

func DownloadStyle(status data.DownloadStatus) lipgloss.Style {
	switch status {
	case data.DownloadQueued:
		return MutedStyle
	case data.DownloadDownloading:
		return StatusDownloading
	case data.DownloadFinished:
		return StatusCompleted
	}
	return TextStyle
}
