package services

import (
	"github.com/google/uuid"
	"github.com/kerbaras/mangafeed/pkg/data"
)

// Event is a change made elsewhere that a controller folds into its state.
type Event interface {
	event()
}

type HistoryAdded struct {
	SourceKey   string
	MangaKey    string
	ChapterKeys []string
	Timestamp   int64
}

type HistoryRemoved struct {
	SourceKey   string
	MangaKey    string
	ChapterKeys []string
}

// HistorySet records partial progress on one chapter.
type HistorySet struct {
	Key       data.ChapterKey
	Page      int
	Timestamp int64
}

type HistoryCleared struct {
	SourceKey string
	MangaKey  string
}

type DownloadStatusChanged struct {
	JobID  uuid.UUID
	Key    data.ChapterKey
	Status data.DownloadStatus
}

type MangaUpdated struct {
	Manga data.Manga
}

func (HistoryAdded) event()          {}
func (HistoryRemoved) event()        {}
func (HistorySet) event()            {}
func (HistoryCleared) event()        {}
func (DownloadStatusChanged) event() {}
func (MangaUpdated) event()          {}

// EventSink receives events. Publish must not block for long.
type EventSink interface {
	Publish(Event)
}

// identity returns the manga an event is about.
func identity(e Event) (sourceKey, mangaKey string) {
	switch e := e.(type) {
	case HistoryAdded:
		return e.SourceKey, e.MangaKey
	case HistoryRemoved:
		return e.SourceKey, e.MangaKey
	case HistorySet:
		return e.Key.SourceKey, e.Key.MangaKey
	case HistoryCleared:
		return e.SourceKey, e.MangaKey
	case DownloadStatusChanged:
		return e.Key.SourceKey, e.Key.MangaKey
	case MangaUpdated:
		return e.Manga.SourceKey, e.Manga.Key
	}
	return "", ""
}
