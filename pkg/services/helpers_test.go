package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/sources"
)

// Mock implementations for testing

type mockSource struct {
	searchFunc func(ctx context.Context, query string, page int, filters []sources.FilterValue) (data.PageResult, error)
	updateFunc func(ctx context.Context, manga data.Manga, needsDetails, needsChapters bool) (data.Manga, []data.Chapter, error)
	pagesFunc  func(ctx context.Context, chapter data.Chapter) ([]string, error)
}

func (m *mockSource) Key() string  { return "test" }
func (m *mockSource) Name() string { return "Test" }

func (m *mockSource) SearchManga(ctx context.Context, query string, page int, filters []sources.FilterValue) (data.PageResult, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, page, filters)
	}
	return data.PageResult{}, nil
}

func (m *mockSource) GetMangaUpdate(ctx context.Context, manga data.Manga, needsDetails, needsChapters bool) (data.Manga, []data.Chapter, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, manga, needsDetails, needsChapters)
	}
	return manga, nil, nil
}

func (m *mockSource) GetPages(ctx context.Context, chapter data.Chapter) ([]string, error) {
	if m.pagesFunc != nil {
		return m.pagesFunc(ctx, chapter)
	}
	return nil, nil
}

// staticOracle reports finished downloads from a fixed set.
type staticOracle map[data.ChapterKey]bool

func (o staticOracle) Status(key data.ChapterKey) data.DownloadStatus {
	if o[key] {
		return data.DownloadFinished
	}
	return data.DownloadNone
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Test helpers

func setupTestDB(t *testing.T) *data.Repository {
	t.Helper()

	repo, err := data.OpenRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testManga() data.Manga {
	return data.Manga{
		SourceKey: "test",
		Key:       "manga-1",
		Title:     "Test Manga",
		Status:    "ongoing",
	}
}

// testChapters builds chapters 1..n of testManga in source order (newest first).
func testChapters(n int) []data.Chapter {
	chapters := make([]data.Chapter, n)
	for i := range chapters {
		number := float64(n - i)
		chapters[i] = data.Chapter{
			SourceKey:   "test",
			MangaKey:    "manga-1",
			Key:         data.FormatNumber(number),
			Number:      &number,
			Language:    "en",
			SourceOrder: i,
		}
	}
	return chapters
}

func keys(chapters []data.Chapter) []string {
	out := make([]string, len(chapters))
	for i, ch := range chapters {
		out[i] = ch.Key
	}
	return out
}

func createTestPNG(t testing.TB) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 6))
	for x := 0; x < 4; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// imageServer serves the same PNG for every path except /missing.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()

	pngData := createTestPNG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	t.Cleanup(server.Close)
	return server
}
