package screens

import "github.com/charmbracelet/bubbles/key"

type libraryKeys struct {
	Up, Down, Open, Filter, Status, Delete, Refresh, Switch, Quit key.Binding
}

func (k libraryKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Filter, k.Status, k.Delete, k.Refresh, k.Switch, k.Quit}
}

func (k libraryKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultLibraryKeys = libraryKeys{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "chapters")),
	Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Status:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Switch:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type searchKeys struct {
	Focus, Up, Down, Open, Add, History, Switch, Quit key.Binding
}

func (k searchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Up, k.Down, k.Open, k.Add, k.History, k.Switch, k.Quit}
}

func (k searchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultSearchKeys = searchKeys{
	Focus:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "switch focus")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search/chapters")),
	Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to library")),
	History: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "previous search")),
	Switch:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

type detailsKeys struct {
	Up, Down, PageUp, PageDown, Next              key.Binding
	Read, Previous, Download, DownloadNext, Erase key.Binding
	Sort, Order, Downloaded, Unread, Locked       key.Binding
	Library, Refresh, Back, Quit                  key.Binding
}

func (k detailsKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Next, k.Read, k.Download, k.Sort, k.Unread, k.Library, k.Back}
}

func (k detailsKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Next},
		{k.Read, k.Previous, k.Download, k.DownloadNext, k.Erase},
		{k.Sort, k.Order, k.Downloaded, k.Unread, k.Locked},
		{k.Library, k.Refresh, k.Back, k.Quit},
	}
}

var defaultDetailsKeys = detailsKeys{
	Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:       key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown:     key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Next:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "go to next chapter")),
	Read:         key.NewBinding(key.WithKeys("enter", "m"), key.WithHelp("m", "toggle read")),
	Previous:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "mark previous read")),
	Download:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
	DownloadNext: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "download next 5")),
	Erase:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete download")),
	Sort:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
	Order:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
	Downloaded:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "downloaded filter")),
	Unread:       key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "unread filter")),
	Locked:       key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "locked filter")),
	Library:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "follow/unfollow")),
	Refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Back:         key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
