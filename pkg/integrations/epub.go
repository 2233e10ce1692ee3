package integrations

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/mangafeed/pkg/data"
)

var errNotInitialized = errors.New("epub builder not initialized")

// EPubBuilder streams the pages of one chapter into an EPUB file under
// outputDir/<manga title>/.
type EPubBuilder struct {
	outputDir string

	book    *epub.Epub
	workDir string
	title   string
	dir     string
	body    strings.Builder
	pages   int
}

func NewEPubBuilder(outputDir string) *EPubBuilder {
	return &EPubBuilder{outputDir: outputDir}
}

func (b *EPubBuilder) Init(manga data.Manga, chapter data.Chapter) error {
	b.Abort()

	title := manga.Title
	if title == "" {
		title = manga.Key
	}
	book, err := epub.NewEpub(title + " - " + chapter.Label())
	if err != nil {
		return fmt.Errorf("failed to create EPub: %w", err)
	}
	book.SetAuthor(manga.SourceKey)
	if manga.Description != "" {
		book.SetDescription(manga.Description)
	}
	if chapter.Language != "" {
		book.SetLang(chapter.Language)
	}

	workDir, err := os.MkdirTemp("", "mangafeed-epub-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	b.book = book
	b.workDir = workDir
	b.title = chapter.Label()
	b.dir = filepath.Join(b.outputDir, sanitizeFilename(title))
	b.body.Reset()
	b.body.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(b.title)))
	b.pages = 0
	return nil
}

// SetCover adds the cover as the first section of the book.
func (b *EPubBuilder) SetCover(cover CoverData) error {
	if b.book == nil {
		return errNotInitialized
	}
	if len(cover.Content) == 0 {
		return errors.New("empty cover image")
	}
	path, err := b.addImage("cover"+extension(cover.ContentType), cover.Content)
	if err != nil {
		return err
	}
	section := fmt.Sprintf(`<div class="cover"><img src="%s" alt="Cover" style="width:100%%;height:auto;"/></div>`, path)
	if _, err := b.book.AddSection(section, "Cover", "cover.xhtml", ""); err != nil {
		return fmt.Errorf("failed to add cover section: %w", err)
	}
	return nil
}

func (b *EPubBuilder) Next(img ImageData) error {
	if b.book == nil {
		return errNotInitialized
	}
	if len(img.Content) == 0 {
		return fmt.Errorf("page %d is empty", img.Index)
	}
	name := fmt.Sprintf("page-%04d%s", img.Index, extension(img.ContentType))
	path, err := b.addImage(name, img.Content)
	if err != nil {
		return err
	}
	b.body.WriteString(fmt.Sprintf(
		`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
		path, img.Index+1, "\n",
	))
	b.pages++
	return nil
}

// Done writes the book and returns its path.
func (b *EPubBuilder) Done() (string, error) {
	if b.book == nil {
		return "", errNotInitialized
	}
	defer b.Abort()

	if b.pages == 0 {
		return "", errors.New("no pages added")
	}
	if _, err := b.book.AddSection(b.body.String(), b.title, "", ""); err != nil {
		return "", fmt.Errorf("failed to add section: %w", err)
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(b.dir, sanitizeFilename(b.title)+".epub")
	if err := b.book.Write(path); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return path, nil
}

// Abort drops the book in progress and its temporary files.
func (b *EPubBuilder) Abort() {
	if b.workDir != "" {
		os.RemoveAll(b.workDir)
	}
	b.book = nil
	b.workDir = ""
}

func (b *EPubBuilder) addImage(name string, content []byte) (string, error) {
	file := filepath.Join(b.workDir, name)
	if err := os.WriteFile(file, content, 0644); err != nil {
		return "", fmt.Errorf("failed to stage image %s: %w", name, err)
	}
	internal, err := b.book.AddImage(file, name)
	if err != nil {
		return "", fmt.Errorf("failed to add image %s: %w", name, err)
	}
	return internal, nil
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		return "untitled"
	}
	return result
}
