package sources

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/kerbaras/mangafeed/pkg/utils"
)

const (
	mangaDexKey     = "mangadex"
	mangaDexURL     = "https://api.mangadex.org"
	mangaDexCovers  = "https://uploads.mangadex.org/covers"
	searchPageSize  = 20
	chapterPageSize = 500
)

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type Manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string `json:"title"`
		Description map[string]string `json:"description"`
		Status      string            `json:"status"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

func (m *Manga) ToManga() data.Manga {
	manga := data.Manga{
		SourceKey:   mangaDexKey,
		Key:         m.ID,
		Title:       localized(m.Attributes.Title),
		Description: localized(m.Attributes.Description),
		Status:      m.Attributes.Status,
	}
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			manga.CoverURL = fmt.Sprintf("%s/%s/%s", mangaDexCovers, m.ID, rel.Attributes.FileName)
		}
	}
	return manga
}

type Chapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string    `json:"title"`
		Language    string    `json:"translatedLanguage"`
		Volume      string    `json:"volume"`
		Number      string    `json:"chapter"`
		ExternalURL string    `json:"externalUrl"`
		PublishAt   time.Time `json:"publishAt"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

func (c *Chapter) ToChapter(mangaKey string, order int) data.Chapter {
	ch := data.Chapter{
		SourceKey:   mangaDexKey,
		MangaKey:    mangaKey,
		Key:         c.ID,
		Title:       c.Attributes.Title,
		Language:    c.Attributes.Language,
		Number:      parseNumber(c.Attributes.Number),
		Volume:      parseNumber(c.Attributes.Volume),
		Locked:      c.Attributes.ExternalURL != "",
		SourceOrder: order,
	}
	if !c.Attributes.PublishAt.IsZero() {
		uploaded := c.Attributes.PublishAt
		ch.Uploaded = &uploaded
	}
	for _, rel := range c.Relationships {
		if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
			ch.Scanlators = append(ch.Scanlators, rel.Attributes.Name)
		}
	}
	return ch
}

type MangaDex struct {
	api *utils.API
}

type Option func(*mangaDexOptions)

type mangaDexOptions struct {
	baseURL   string
	rateLimit float64
}

func WithBaseURL(baseURL string) Option {
	return func(o *mangaDexOptions) { o.baseURL = baseURL }
}

// WithRateLimit caps outgoing requests per second; zero disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(o *mangaDexOptions) { o.rateLimit = perSecond }
}

func NewMangaDex(opts ...Option) *MangaDex {
	o := mangaDexOptions{baseURL: mangaDexURL, rateLimit: 5}
	for _, opt := range opts {
		opt(&o)
	}
	return &MangaDex{api: utils.NewAPI(o.baseURL, o.rateLimit)}
}

func (m *MangaDex) Key() string  { return mangaDexKey }
func (m *MangaDex) Name() string { return "MangaDex" }

func (m *MangaDex) SearchManga(ctx context.Context, query string, page int, filters []FilterValue) (data.PageResult, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(searchPageSize))
	params.Set("offset", strconv.Itoa((page-1)*searchPageSize))
	params.Add("includes[]", "cover_art")
	if query != "" {
		params.Set("title", query)
	}
	for _, f := range filters {
		applyFilter(params, f)
	}

	var resp struct {
		Data   []Manga `json:"data"`
		Offset int     `json:"offset"`
		Total  int     `json:"total"`
	}
	if err := m.api.Get(ctx, "/manga", params, &resp); err != nil {
		return data.PageResult{}, Wrap("mangadex search", err)
	}

	out := data.PageResult{
		Entries:     make([]data.Manga, len(resp.Data)),
		HasNextPage: resp.Offset+len(resp.Data) < resp.Total,
	}
	for i := range resp.Data {
		out.Entries[i] = resp.Data[i].ToManga()
	}
	return out, nil
}

func (m *MangaDex) GetMangaUpdate(ctx context.Context, manga data.Manga, needsDetails, needsChapters bool) (data.Manga, []data.Chapter, error) {
	if needsDetails {
		params := url.Values{}
		params.Add("includes[]", "cover_art")
		var resp struct {
			Data Manga `json:"data"`
		}
		if err := m.api.Get(ctx, "/manga/"+url.PathEscape(manga.Key), params, &resp); err != nil {
			return manga, nil, Wrap("mangadex manga", err)
		}
		manga = resp.Data.ToManga()
	}

	if !needsChapters {
		return manga, nil, nil
	}
	chapters, err := m.getChapters(ctx, manga.Key)
	if err != nil {
		return manga, nil, err
	}
	return manga, chapters, nil
}

// getChapters walks every feed page. Source order is newest first.
func (m *MangaDex) getChapters(ctx context.Context, mangaKey string) ([]data.Chapter, error) {
	var chapters []data.Chapter
	for offset := 0; ; {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(chapterPageSize))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("order[volume]", "desc")
		params.Set("order[chapter]", "desc")
		params.Add("includes[]", "scanlation_group")

		var resp struct {
			Data  []Chapter `json:"data"`
			Total int       `json:"total"`
		}
		if err := m.api.Get(ctx, "/manga/"+url.PathEscape(mangaKey)+"/feed", params, &resp); err != nil {
			return nil, Wrap("mangadex feed", err)
		}
		for i := range resp.Data {
			chapters = append(chapters, resp.Data[i].ToChapter(mangaKey, len(chapters)))
		}

		offset += len(resp.Data)
		if len(resp.Data) == 0 || offset >= resp.Total {
			return chapters, nil
		}
	}
}

func (m *MangaDex) GetPages(ctx context.Context, chapter data.Chapter) ([]string, error) {
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.api.Get(ctx, "/at-home/server/"+url.PathEscape(chapter.Key), nil, &server); err != nil {
		return nil, Wrap("mangadex pages", err)
	}
	if len(server.Chapter.Data) == 0 {
		return nil, &Error{Kind: KindNoResult, Op: "mangadex pages", Err: ErrNoResult}
	}
	pages := make([]string, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file)
	}
	return pages, nil
}

func applyFilter(params url.Values, f FilterValue) {
	switch f.ID {
	case "tags":
		for _, v := range f.Included {
			params.Add("includedTags[]", v)
		}
		for _, v := range f.Excluded {
			params.Add("excludedTags[]", v)
		}
	case "status", "contentRating", "publicationDemographic", "originalLanguage":
		for _, v := range f.Included {
			params.Add(f.ID+"[]", v)
		}
	case "sort":
		if len(f.Included) > 0 {
			params.Set("order["+f.Included[0]+"]", "desc")
		}
	}
}

func localized(values map[string]string) string {
	if v, ok := values["en"]; ok {
		return v
	}
	langs := slices.Sorted(maps.Keys(values))
	if len(langs) == 0 {
		return ""
	}
	return values[langs[0]]
}

func parseNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &n
}
