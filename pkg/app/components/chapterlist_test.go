package components

import (
	"strings"
	"testing"

	"github.com/kerbaras/mangafeed/pkg/chapters"
	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/services"
)

type oracle map[string]data.DownloadStatus

func (o oracle) Status(key data.ChapterKey) data.DownloadStatus {
	return o[key.ChapterKey]
}

func testChapterList(keys ...string) []data.Chapter {
	list := make([]data.Chapter, len(keys))
	for i, key := range keys {
		list[i] = data.Chapter{SourceKey: "test", MangaKey: "manga-1", Key: key, Title: "Chapter " + key}
	}
	return list
}

func TestChapterListSetBindingsKeepsCursor(t *testing.T) {
	l := NewChapterList()
	l.SetBindings(services.Bindings{Chapters: testChapterList("3", "2", "1")})
	l.Move(1)

	l.SetBindings(services.Bindings{Chapters: testChapterList("1", "2", "3")})
	if ch, _ := l.Current(); ch.Key != "2" {
		t.Errorf("Expected cursor to stay on chapter 2, got %q", ch.Key)
	}

	l.JumpTo("3")
	l.SetBindings(services.Bindings{Chapters: testChapterList("1")})
	if l.Selected != 0 {
		t.Errorf("Expected cursor to be clamped, got %d", l.Selected)
	}
}

func TestChapterListMove(t *testing.T) {
	l := NewChapterList()
	l.Move(1)
	if _, ok := l.Current(); ok {
		t.Error("Expected no current chapter in empty list")
	}

	l.SetBindings(services.Bindings{Chapters: testChapterList("3", "2", "1")})
	l.Move(10)
	if l.Selected != 2 {
		t.Errorf("Expected cursor at the end, got %d", l.Selected)
	}
	l.Move(-10)
	if l.Selected != 0 {
		t.Errorf("Expected cursor at the start, got %d", l.Selected)
	}
	if l.JumpTo("missing") {
		t.Error("Expected JumpTo to fail for a hidden chapter")
	}
}

func TestChapterListView(t *testing.T) {
	list := testChapterList("3", "2", "1")
	list[0].Locked = true

	l := NewChapterList()
	l.Downloads = oracle{"1": data.DownloadFinished}
	l.SetBindings(services.Bindings{
		Chapters: list,
		History: map[string]data.HistoryEntry{
			"1": {Page: data.PageCompleted},
			"2": {Page: 4},
		},
		Verdict: chapters.Verdict{Kind: chapters.VerdictChapter, Chapter: list[1], InProgress: true},
	})

	lines := strings.Split(strings.TrimSpace(l.View()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "🔒") {
		t.Error("Expected locked marker on chapter 3")
	}
	if !strings.Contains(lines[1], "▶") || !strings.Contains(lines[1], "(page 5)") {
		t.Error("Expected next chapter marker with page on chapter 2")
	}
	if !strings.Contains(lines[2], "✓") || !strings.Contains(lines[2], "●") {
		t.Error("Expected read and downloaded markers on chapter 1")
	}
}

func TestChapterListEmptyView(t *testing.T) {
	l := NewChapterList()
	if !strings.Contains(l.View(), "No chapters") {
		t.Error("Expected empty message")
	}
}
