package chapters

import (
	"testing"

	"github.com/kerbaras/mangafeed/pkg/data"
	"github.com/stretchr/testify/assert"
)

// allFilterSets enumerates every valid filter set: each type absent,
// included or excluded.
func allFilterSets() []Filters {
	sets := []Filters{{}}
	for _, ft := range []FilterType{FilterDownloaded, FilterUnread, FilterLocked} {
		var next []Filters
		for _, base := range sets {
			next = append(next, base)
			for _, exclude := range []bool{false, true} {
				f := make(Filters, len(base)+1)
				for k, v := range base {
					f[k] = v
				}
				f[ft] = exclude
				next = append(next, f)
			}
		}
		sets = next
	}
	return sets
}

func TestFlagRoundTrip(t *testing.T) {
	sets := allFilterSets()
	assert.Len(t, sets, 27)

	for _, sort := range []SortOption{SortSourceOrder, SortChapterNumber, SortUploadDate} {
		for _, ascending := range []bool{false, true} {
			for _, filters := range sets {
				gotSort, gotAscending, gotFilters := DecodeFlags(EncodeFlags(sort, ascending, filters))
				assert.Equal(t, sort, gotSort)
				assert.Equal(t, ascending, gotAscending)
				assert.Equal(t, filters, gotFilters)
			}
		}
	}
}

func TestFlagBitPositions(t *testing.T) {
	tests := []struct {
		name      string
		sort      SortOption
		ascending bool
		filters   Filters
		want      int
	}{
		{"default", SortSourceOrder, false, nil, 0},
		{"ascending", SortSourceOrder, true, nil, 0b1},
		{"chapter sort", SortChapterNumber, false, nil, 0b10},
		{"upload date ascending", SortUploadDate, true, nil, 0b101},
		{"downloaded include", SortSourceOrder, false, FiltersOf(FilterOption{FilterDownloaded, false}), 0b1_0000},
		{"downloaded exclude", SortSourceOrder, false, FiltersOf(FilterOption{FilterDownloaded, true}), 0b11_0000},
		{"unread exclude", SortSourceOrder, false, FiltersOf(FilterOption{FilterUnread, true}), 0b1100_0000},
		{"locked include", SortSourceOrder, false, FiltersOf(FilterOption{FilterLocked, false}), 0b1_0000_0000},
		{"locked exclude", SortSourceOrder, false, FiltersOf(FilterOption{FilterLocked, true}), 0b11_0000_0000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeFlags(tt.sort, tt.ascending, tt.filters))
		})
	}
}

func TestDecodeFlagsTolerance(t *testing.T) {
	t.Run("exclude bit without enable bit", func(t *testing.T) {
		_, _, filters := DecodeFlags(FlagUnreadFilterExcluded)
		assert.Empty(t, filters)
	})

	t.Run("unknown sort method", func(t *testing.T) {
		sort, ascending, _ := DecodeFlags(0b111<<1 | FlagSortAscending)
		assert.Equal(t, SortSourceOrder, sort)
		assert.True(t, ascending)
	})
}

func TestOptionsChapterFiltersRoundTrip(t *testing.T) {
	lang := "en"
	opts := Options{
		Sort:       SortUploadDate,
		Ascending:  true,
		Filters:    FiltersOf(FilterOption{FilterUnread, false}),
		Language:   &lang,
		Scanlators: []string{"group"},
	}

	persisted := opts.ToChapterFilters()
	assert.Equal(t, data.ChapterFilters{
		Flags:      0b101 | FlagUnreadFilterEnabled,
		Language:   &lang,
		Scanlators: []string{"group"},
	}, persisted)
	assert.Equal(t, opts, OptionsFrom(persisted))
}
