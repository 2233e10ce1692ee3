package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mangas (
		source_key  VARCHAR NOT NULL,
		manga_key   VARCHAR NOT NULL,
		title       VARCHAR,
		description VARCHAR,
		cover_url   VARCHAR,
		status      VARCHAR,
		added_at    BIGINT,
		PRIMARY KEY (source_key, manga_key)
	)`,
	`CREATE TABLE IF NOT EXISTS chapters (
		source_key   VARCHAR NOT NULL,
		manga_key    VARCHAR NOT NULL,
		chapter_key  VARCHAR NOT NULL,
		number       DOUBLE,
		volume       DOUBLE,
		title        VARCHAR,
		uploaded     TIMESTAMP,
		scanlators   VARCHAR,
		language     VARCHAR,
		locked       BOOLEAN,
		source_order INTEGER,
		PRIMARY KEY (source_key, manga_key, chapter_key)
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		source_key  VARCHAR NOT NULL,
		manga_key   VARCHAR NOT NULL,
		chapter_key VARCHAR NOT NULL,
		page        INTEGER NOT NULL,
		ts          BIGINT NOT NULL,
		PRIMARY KEY (source_key, manga_key, chapter_key)
	)`,
	`CREATE TABLE IF NOT EXISTS chapter_filters (
		source_key VARCHAR NOT NULL,
		manga_key  VARCHAR NOT NULL,
		flags      INTEGER NOT NULL,
		language   VARCHAR,
		scanlators VARCHAR,
		PRIMARY KEY (source_key, manga_key)
	)`,
	`CREATE TABLE IF NOT EXISTS downloads (
		source_key  VARCHAR NOT NULL,
		manga_key   VARCHAR NOT NULL,
		chapter_key VARCHAR NOT NULL,
		path        VARCHAR NOT NULL,
		finished_at BIGINT,
		PRIMARY KEY (source_key, manga_key, chapter_key)
	)`,
	`CREATE TABLE IF NOT EXISTS search_history (
		position INTEGER PRIMARY KEY,
		query    VARCHAR NOT NULL
	)`,
}

// InitDuckDB opens the database at path, creating parent directories and
// tables as needed.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}

// Repository is the DuckDB-backed store for library mangas, chapters,
// reading history, chapter filters and search history.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OpenRepository initializes the database at path and wraps it.
func OpenRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Library

func (r *Repository) SaveManga(ctx context.Context, manga *Manga) error {
	if manga == nil {
		return fmt.Errorf("manga cannot be nil")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mangas (source_key, manga_key, title, description, cover_url, status, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_key, manga_key) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			cover_url = excluded.cover_url,
			status = excluded.status`,
		manga.SourceKey, manga.Key, manga.Title, manga.Description, manga.CoverURL, manga.Status,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save manga: %w", err)
	}
	return nil
}

// GetManga returns nil without error when the manga is not in the library.
func (r *Repository) GetManga(ctx context.Context, sourceKey, mangaKey string) (*Manga, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT source_key, manga_key, title, description, cover_url, status
		FROM mangas WHERE source_key = ? AND manga_key = ?`,
		sourceKey, mangaKey,
	)
	manga, err := scanManga(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manga: %w", err)
	}
	return manga, nil
}

func (r *Repository) HasLibraryManga(ctx context.Context, sourceKey, mangaKey string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mangas WHERE source_key = ? AND manga_key = ?`,
		sourceKey, mangaKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check library: %w", err)
	}
	return count > 0, nil
}

// ListMangas returns the library in the order mangas were added.
func (r *Repository) ListMangas(ctx context.Context) ([]*Manga, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_key, manga_key, title, description, cover_url, status
		FROM mangas ORDER BY added_at, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mangas: %w", err)
	}
	defer rows.Close()

	var mangas []*Manga
	for rows.Next() {
		manga, err := scanManga(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan manga: %w", err)
		}
		mangas = append(mangas, manga)
	}
	return mangas, rows.Err()
}

// DeleteManga removes a manga together with its chapters, history, filters
// and download records.
func (r *Repository) DeleteManga(ctx context.Context, sourceKey, mangaKey string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"chapters", "history", "chapter_filters", "downloads", "mangas"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE source_key = ? AND manga_key = ?`, table)
		if _, err := tx.ExecContext(ctx, query, sourceKey, mangaKey); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Chapters

// SetChapters replaces the stored chapter set of a manga and returns the
// chapters that were not stored before.
func (r *Repository) SetChapters(ctx context.Context, sourceKey, mangaKey string, chapters []Chapter) ([]Chapter, error) {
	existing, err := r.GetChapters(ctx, sourceKey, mangaKey)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, ch := range existing {
		known[ch.Key] = true
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chapters WHERE source_key = ? AND manga_key = ?`, sourceKey, mangaKey,
	); err != nil {
		return nil, fmt.Errorf("failed to clear chapters: %w", err)
	}

	var added []Chapter
	for _, ch := range chapters {
		scanlators, err := json.Marshal(ch.Scanlators)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chapters (source_key, manga_key, chapter_key, number, volume, title,
				uploaded, scanlators, language, locked, source_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sourceKey, mangaKey, ch.Key, nullFloat(ch.Number), nullFloat(ch.Volume), ch.Title,
			nullTime(ch.Uploaded), string(scanlators), ch.Language, ch.Locked, ch.SourceOrder,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save chapter %s: %w", ch.Key, err)
		}
		if !known[ch.Key] {
			added = append(added, ch)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

// GetChapters returns the stored chapters in source order.
func (r *Repository) GetChapters(ctx context.Context, sourceKey, mangaKey string) ([]Chapter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chapter_key, number, volume, title, uploaded, scanlators, language, locked, source_order
		FROM chapters WHERE source_key = ? AND manga_key = ?
		ORDER BY source_order`,
		sourceKey, mangaKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters: %w", err)
	}
	defer rows.Close()

	var chapters []Chapter
	for rows.Next() {
		var (
			ch         = Chapter{SourceKey: sourceKey, MangaKey: mangaKey}
			number     sql.NullFloat64
			volume     sql.NullFloat64
			title      sql.NullString
			uploaded   sql.NullTime
			scanlators sql.NullString
			language   sql.NullString
		)
		if err := rows.Scan(&ch.Key, &number, &volume, &title, &uploaded, &scanlators,
			&language, &ch.Locked, &ch.SourceOrder); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		if number.Valid {
			ch.Number = &number.Float64
		}
		if volume.Valid {
			ch.Volume = &volume.Float64
		}
		if uploaded.Valid {
			t := uploaded.Time
			ch.Uploaded = &t
		}
		if scanlators.Valid && scanlators.String != "" {
			if err := json.Unmarshal([]byte(scanlators.String), &ch.Scanlators); err != nil {
				return nil, fmt.Errorf("failed to decode scanlators: %w", err)
			}
		}
		ch.Title = title.String
		ch.Language = language.String
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// History

// GetReadingHistory returns the history of a manga keyed by chapter key.
func (r *Repository) GetReadingHistory(ctx context.Context, sourceKey, mangaKey string) (map[string]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT chapter_key, page, ts FROM history WHERE source_key = ? AND manga_key = ?`,
		sourceKey, mangaKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	history := make(map[string]HistoryEntry)
	for rows.Next() {
		var key string
		var entry HistoryEntry
		if err := rows.Scan(&key, &entry.Page, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		history[key] = entry
	}
	return history, rows.Err()
}

// AddHistory marks chapters as fully read at ts.
func (r *Repository) AddHistory(ctx context.Context, sourceKey, mangaKey string, chapterKeys []string, ts int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range chapterKeys {
		if err := upsertHistory(ctx, tx, sourceKey, mangaKey, key, PageCompleted, ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetHistory records partial progress. A completed chapter keeps its state.
func (r *Repository) SetHistory(ctx context.Context, key ChapterKey, page int, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history (source_key, manga_key, chapter_key, page, ts) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_key, manga_key, chapter_key) DO UPDATE SET
			page = excluded.page,
			ts = excluded.ts
		WHERE history.page <> -1`,
		key.SourceKey, key.MangaKey, key.ChapterKey, page, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to set history: %w", err)
	}
	return nil
}

func (r *Repository) RemoveHistory(ctx context.Context, sourceKey, mangaKey string, chapterKeys []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range chapterKeys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM history WHERE source_key = ? AND manga_key = ? AND chapter_key = ?`,
			sourceKey, mangaKey, key,
		); err != nil {
			return fmt.Errorf("failed to remove history: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) ClearHistory(ctx context.Context, sourceKey, mangaKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM history WHERE source_key = ? AND manga_key = ?`, sourceKey, mangaKey)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Chapter filters

// GetChapterFilters returns the zero value when nothing was saved.
func (r *Repository) GetChapterFilters(ctx context.Context, sourceKey, mangaKey string) (ChapterFilters, error) {
	var (
		filters    ChapterFilters
		language   sql.NullString
		scanlators sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT flags, language, scanlators FROM chapter_filters WHERE source_key = ? AND manga_key = ?`,
		sourceKey, mangaKey,
	).Scan(&filters.Flags, &language, &scanlators)
	if errors.Is(err, sql.ErrNoRows) {
		return ChapterFilters{}, nil
	}
	if err != nil {
		return ChapterFilters{}, fmt.Errorf("failed to get chapter filters: %w", err)
	}
	if language.Valid {
		filters.Language = &language.String
	}
	if scanlators.Valid && scanlators.String != "" {
		if err := json.Unmarshal([]byte(scanlators.String), &filters.Scanlators); err != nil {
			return ChapterFilters{}, fmt.Errorf("failed to decode scanlator filter: %w", err)
		}
	}
	return filters, nil
}

func (r *Repository) SaveChapterFilters(ctx context.Context, sourceKey, mangaKey string, filters ChapterFilters) error {
	scanlators, err := json.Marshal(filters.Scanlators)
	if err != nil {
		return err
	}
	var language sql.NullString
	if filters.Language != nil {
		language = sql.NullString{String: *filters.Language, Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO chapter_filters (source_key, manga_key, flags, language, scanlators)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_key, manga_key) DO UPDATE SET
			flags = excluded.flags,
			language = excluded.language,
			scanlators = excluded.scanlators`,
		sourceKey, mangaKey, filters.Flags, language, string(scanlators),
	)
	if err != nil {
		return fmt.Errorf("failed to save chapter filters: %w", err)
	}
	return nil
}

// Downloads

// SaveDownload records the packaged file of a finished chapter download.
func (r *Repository) SaveDownload(ctx context.Context, key ChapterKey, path string, finishedAt int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads (source_key, manga_key, chapter_key, path, finished_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_key, manga_key, chapter_key) DO UPDATE SET
			path = excluded.path,
			finished_at = excluded.finished_at`,
		key.SourceKey, key.MangaKey, key.ChapterKey, path, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}
	return nil
}

// GetDownloads maps chapter keys of a manga to their downloaded files.
func (r *Repository) GetDownloads(ctx context.Context, sourceKey, mangaKey string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT chapter_key, path FROM downloads WHERE source_key = ? AND manga_key = ?`,
		sourceKey, mangaKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get downloads: %w", err)
	}
	defer rows.Close()

	downloads := make(map[string]string)
	for rows.Next() {
		var key, path string
		if err := rows.Scan(&key, &path); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads[key] = path
	}
	return downloads, rows.Err()
}

func (r *Repository) DeleteDownload(ctx context.Context, key ChapterKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM downloads WHERE source_key = ? AND manga_key = ? AND chapter_key = ?`,
		key.SourceKey, key.MangaKey, key.ChapterKey,
	)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return nil
}

// Search history

// GetSearchHistory returns saved queries oldest first.
func (r *Repository) GetSearchHistory(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT query FROM search_history ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	defer rows.Close()

	var history []string
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			return nil, err
		}
		history = append(history, query)
	}
	return history, rows.Err()
}

func (r *Repository) SaveSearchHistory(ctx context.Context, history []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_history`); err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	for i, query := range history {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_history (position, query) VALUES (?, ?)`, i, query,
		); err != nil {
			return fmt.Errorf("failed to save search history: %w", err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManga(row rowScanner) (*Manga, error) {
	var (
		manga       Manga
		title       sql.NullString
		description sql.NullString
		coverURL    sql.NullString
		status      sql.NullString
	)
	if err := row.Scan(&manga.SourceKey, &manga.Key, &title, &description, &coverURL, &status); err != nil {
		return nil, err
	}
	manga.Title = title.String
	manga.Description = description.String
	manga.CoverURL = coverURL.String
	manga.Status = status.String
	return &manga, nil
}

func upsertHistory(ctx context.Context, tx *sql.Tx, sourceKey, mangaKey, chapterKey string, page int, ts int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO history (source_key, manga_key, chapter_key, page, ts) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_key, manga_key, chapter_key) DO UPDATE SET
			page = excluded.page,
			ts = excluded.ts`,
		sourceKey, mangaKey, chapterKey, page, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
