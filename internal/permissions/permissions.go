// Package permissions decides what the user may do with listed items.
package permissions

import "github.com/spacefiler/spacefiler/internal/models"

// Resolver computes the permissions of an item listed under folderID.
// Implementations must be pure.
type Resolver interface {
	Resolve(item models.Item, folderID string) models.Permissions
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(item models.Item, folderID string) models.Permissions

func (f ResolverFunc) Resolve(item models.Item, folderID string) models.Permissions {
	return f(item, folderID)
}

// SpaceHeuristic treats every item as readable and an item as writable only
// when it belongs to the folder it was listed from.
type SpaceHeuristic struct{}

func (SpaceHeuristic) Resolve(item models.Item, folderID string) models.Permissions {
	return models.Permissions{
		Readable: true,
		Writable: item.SpaceID == folderID,
	}
}

// Default is the resolver used when none is configured.
var Default Resolver = SpaceHeuristic{}

// Apply returns a copy of items with permissions attached.
func Apply(r Resolver, items []models.Item, folderID string) []models.Item {
	if r == nil {
		r = Default
	}
	out := make([]models.Item, len(items))
	for i, item := range items {
		item.Permissions = r.Resolve(item, folderID)
		out[i] = item
	}
	return out
}

// ResolveSelection aggregates the permissions of a selection: the selection
// is readable or writable only if every entry is. An empty selection has no
// permissions.
func ResolveSelection(sel models.Selection) models.Permissions {
	if len(sel) == 0 {
		return models.Permissions{}
	}
	agg := models.Permissions{Readable: true, Writable: true}
	for _, entry := range sel {
		agg.Readable = agg.Readable && entry.Permissions.Readable
		agg.Writable = agg.Writable && entry.Permissions.Writable
	}
	return agg
}
