package chapters

import "github.com/kerbaras/mangafeed/pkg/data"

// Persisted flag layout. These bit positions are stored on disk and must not change.
const (
	FlagSortAscending          = 1 << 0
	FlagSortMethod             = 0b111 << 1
	FlagDownloadFilterEnabled  = 1 << 4
	FlagDownloadFilterExcluded = 1 << 5
	FlagUnreadFilterEnabled    = 1 << 6
	FlagUnreadFilterExcluded   = 1 << 7
	FlagLockedFilterEnabled    = 1 << 8
	FlagLockedFilterExcluded   = 1 << 9
)

var filterBits = map[FilterType][2]int{
	FilterDownloaded: {FlagDownloadFilterEnabled, FlagDownloadFilterExcluded},
	FilterUnread:     {FlagUnreadFilterEnabled, FlagUnreadFilterExcluded},
	FilterLocked:     {FlagLockedFilterEnabled, FlagLockedFilterExcluded},
}

// EncodeFlags packs sort and filter settings into the persisted integer.
func EncodeFlags(sort SortOption, ascending bool, filters Filters) int {
	var flags int
	if ascending {
		flags |= FlagSortAscending
	}
	flags |= (int(sort) << 1) & FlagSortMethod
	for t, exclude := range filters {
		bits, ok := filterBits[t]
		if !ok {
			continue
		}
		flags |= bits[0]
		if exclude {
			flags |= bits[1]
		}
	}
	return flags
}

// DecodeFlags unpacks a persisted integer. Unknown sort values fall back to
// source order; exclude bits without their enable bit are ignored.
func DecodeFlags(flags int) (SortOption, bool, Filters) {
	sort := SortOption((flags & FlagSortMethod) >> 1)
	if sort > SortUploadDate {
		sort = SortSourceOrder
	}

	filters := make(Filters)
	for t, bits := range filterBits {
		if flags&bits[0] != 0 {
			filters[t] = flags&bits[1] != 0
		}
	}

	return sort, flags&FlagSortAscending != 0, filters
}

// ToChapterFilters converts options into their persisted form.
func (o Options) ToChapterFilters() data.ChapterFilters {
	return data.ChapterFilters{
		Flags:      EncodeFlags(o.Sort, o.Ascending, o.Filters),
		Language:   o.Language,
		Scanlators: o.Scanlators,
	}
}

// OptionsFrom restores options from their persisted form.
func OptionsFrom(f data.ChapterFilters) Options {
	sort, ascending, filters := DecodeFlags(f.Flags)
	return Options{
		Sort:       sort,
		Ascending:  ascending,
		Filters:    filters,
		Language:   f.Language,
		Scanlators: f.Scanlators,
	}
}
