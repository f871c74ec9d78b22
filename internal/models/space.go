package models

import (
	"encoding/json"
	"fmt"
)

// SpaceClass tags how a space is presented and where it came from.
type SpaceClass string

const (
	SpaceClassNormal  SpaceClass = "normal"
	SpaceClassShare   SpaceClass = "share"
	SpaceClassSpecial SpaceClass = "special"
)

// Space is a top-level storage root shown in the sidebar.
type Space struct {
	ID      string     `json:"id"`
	Caption string     `json:"caption"`
	Class   SpaceClass `json:"class"`
}

// IsSpecial reports whether the space is a client-side virtual space.
func (s Space) IsSpecial() bool {
	return s.Class == SpaceClassSpecial
}

// Special space IDs. These never come from the server.
const (
	SpaceFavour = "favour"
	SpaceSearch = "search"
	SpaceRecent = "recent"
	SpaceTrash  = "trash"
)

// SpecialSpaces is the static registry appended after the server spaces,
// in display order.
var SpecialSpaces = []Space{
	{ID: SpaceFavour, Caption: "Favour", Class: SpaceClassSpecial},
	{ID: SpaceSearch, Caption: "Search", Class: SpaceClassSpecial},
	{ID: SpaceRecent, Caption: "Recent", Class: SpaceClassSpecial},
	{ID: SpaceTrash, Caption: "Trash", Class: SpaceClassSpecial},
}

// SpecialSpace looks up a registry entry by id.
func SpecialSpace(id string) (Space, bool) {
	for _, s := range SpecialSpaces {
		if s.ID == id {
			return s, true
		}
	}
	return Space{}, false
}

// RestoresBySwitch reports whether a persisted location ending in id must be
// restored by switching to that space rather than by replaying the path.
// Favour is not in this set.
func RestoresBySwitch(id string) bool {
	switch id {
	case SpaceSearch, SpaceTrash, SpaceRecent:
		return true
	}
	return false
}

// SpaceTuple is the wire form of a space: [id, name, class].
type SpaceTuple [3]string

// UnmarshalJSON accepts tuples with trailing elements missing.
func (t *SpaceTuple) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("space tuple: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("space tuple: want at least [id, name], got %d elements", len(raw))
	}
	*t = SpaceTuple{}
	copy(t[:], raw)
	return nil
}

// Space converts the tuple into a Space.
func (t SpaceTuple) Space() Space {
	class := SpaceClass(t[2])
	if class == "" {
		class = SpaceClassNormal
	}
	return Space{ID: t[0], Caption: t[1], Class: class}
}

// BuildSpaceList drops shared spaces and appends the special registry.
func BuildSpaceList(tuples []SpaceTuple) []Space {
	spaces := make([]Space, 0, len(tuples)+len(SpecialSpaces))
	for _, t := range tuples {
		s := t.Space()
		if s.Class == SpaceClassShare {
			continue
		}
		spaces = append(spaces, s)
	}
	return append(spaces, SpecialSpaces...)
}
