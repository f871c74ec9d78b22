package models

import "strings"

// PathSegment is one breadcrumb entry.
type PathSegment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Path is the breadcrumb trail from the space root to the open folder.
// When non-empty, the first segment is the space and the last is the open folder.
type Path []PathSegment

// Location is derived from a Path and never stored on its own.
type Location struct {
	SpaceID   string
	FolderID  string // empty at the space root
	CurrentID string
}

// Target returns the id an upload or existence check is addressed to.
func (l Location) Target() string {
	if l.FolderID != "" {
		return l.FolderID
	}
	return l.SpaceID
}

// Location computes the location for the path.
func (p Path) Location() Location {
	if len(p) == 0 {
		return Location{}
	}
	loc := Location{
		SpaceID:   p[0].ID,
		CurrentID: p[len(p)-1].ID,
	}
	if len(p) > 1 {
		loc.FolderID = p[len(p)-1].ID
	}
	return loc
}

// Last returns the open folder segment.
func (p Path) Last() (PathSegment, bool) {
	if len(p) == 0 {
		return PathSegment{}, false
	}
	return p[len(p)-1], true
}

// Clone returns an independent copy.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Enter returns the path after opening a folder: collapsed to the root when
// the folder is the space itself, otherwise appended.
func (p Path) Enter(seg PathSegment) Path {
	if len(p) == 0 || seg.ID == p[0].ID {
		return Path{seg}
	}
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// JumpTo truncates to the segments before index and re-appends path[index].
func (p Path) JumpTo(index int) (Path, bool) {
	if index < 0 || index >= len(p) {
		return nil, false
	}
	out := make(Path, index, index+1)
	copy(out, p[:index])
	return append(out, p[index]), true
}

// String renders the path as "/Space/Folder".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.Name)
	}
	return b.String()
}
