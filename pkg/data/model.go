package data

import (
	"strconv"
	"strings"
	"time"
)

// PageCompleted is the history page value marking a chapter as fully read.
const PageCompleted = -1

type Manga struct {
	SourceKey   string
	Key         string
	Title       string
	Description string
	CoverURL    string
	Status      string // "ongoing", "completed", ...
}

// Identity is the de-duplication key of a manga across feed pages. Keys may
// contain dots, so the parts are joined with NUL.
func (m Manga) Identity() string {
	return m.SourceKey + "\x00" + m.Key
}

// ChapterKey uniquely names a chapter across sources and refreshes.
type ChapterKey struct {
	SourceKey  string
	MangaKey   string
	ChapterKey string
}

func (k ChapterKey) String() string {
	return strings.Join([]string{k.SourceKey, k.MangaKey, k.ChapterKey}, "/")
}

// Chapter is an immutable chapter record. A refreshed chapter list replaces
// the old one entirely, with the key triple kept stable.
type Chapter struct {
	SourceKey   string
	MangaKey    string
	Key         string
	Number      *float64
	Volume      *float64
	Title       string
	Uploaded    *time.Time
	Scanlators  []string
	Language    string
	Locked      bool
	SourceOrder int
}

func (c Chapter) ID() ChapterKey {
	return ChapterKey{SourceKey: c.SourceKey, MangaKey: c.MangaKey, ChapterKey: c.Key}
}

// Label renders "Vol. X Ch. Y: Title" leaving out missing parts.
func (c Chapter) Label() string {
	var parts []string
	if c.Volume != nil {
		parts = append(parts, "Vol. "+FormatNumber(*c.Volume))
	}
	if c.Number != nil {
		parts = append(parts, "Ch. "+FormatNumber(*c.Number))
	}
	label := strings.Join(parts, " ")
	switch {
	case label == "" && c.Title == "":
		return c.Key
	case label == "":
		return c.Title
	case c.Title == "":
		return label
	}
	return label + ": " + c.Title
}

// HistoryEntry is the reading state of one chapter. Page == PageCompleted
// means fully read; any page >= 0 is an in-progress read.
type HistoryEntry struct {
	Page      int
	Timestamp int64
}

func (h HistoryEntry) Completed() bool {
	return h.Page == PageCompleted
}

type PageResult struct {
	Entries     []Manga
	HasNextPage bool
}

type DownloadStatus int

const (
	DownloadNone DownloadStatus = iota
	DownloadQueued
	DownloadDownloading
	DownloadFinished
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadQueued:
		return "queued"
	case DownloadDownloading:
		return "downloading"
	case DownloadFinished:
		return "finished"
	}
	return "none"
}

// ChapterFilters is the persisted chapter list configuration of a manga.
type ChapterFilters struct {
	Flags      int
	Language   *string
	Scanlators []string
}

// FormatNumber prints chapter and volume numbers without trailing zeros.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
