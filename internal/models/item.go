package models

// Permissions attached client-side to a listed item.
type Permissions struct {
	Readable bool `json:"readable"`
	Writable bool `json:"writable"`
}

// Item is one entry of a folder listing.
type Item struct {
	ItemID       string      `json:"item_id"`
	ItemName     string      `json:"item_name"`
	IsFolder     bool        `json:"is_folder"`
	ModifiedTime string      `json:"modified_time"`
	SpaceID      string      `json:"space_id"`
	Permissions  Permissions `json:"-"`
}

// Segment returns the breadcrumb entry for opening this item.
func (i Item) Segment() PathSegment {
	return PathSegment{ID: i.ItemID, Name: i.ItemName}
}

// SelectionEntry is what the selection remembers about an item.
type SelectionEntry struct {
	IsFolder    bool
	ItemName    string
	Permissions Permissions
}

// Selection maps item id to its entry.
type Selection map[string]SelectionEntry

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SortField names the key a listing is ordered by.
type SortField string

const (
	SortByName         SortField = "item_name"
	SortByModifiedTime SortField = "modified_time"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortOrder is the active ordering of a listing. Folders always come first.
type SortOrder struct {
	Field SortField     `json:"field"`
	Order SortDirection `json:"order"`
}

// DefaultSortOrder sorts by name ascending.
var DefaultSortOrder = SortOrder{Field: SortByName, Order: SortAsc}

// Normalize replaces unknown values with the defaults.
func (o SortOrder) Normalize() SortOrder {
	if o.Field != SortByName && o.Field != SortByModifiedTime {
		o.Field = SortByName
	}
	if o.Order != SortAsc && o.Order != SortDesc {
		o.Order = SortAsc
	}
	return o
}
