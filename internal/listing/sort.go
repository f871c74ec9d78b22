// Package listing fetches folder contents and orders them for display.
package listing

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/spacefiler/spacefiler/internal/models"
)

// Sort orders items in place. Folders always precede files; within each
// group items are ordered by the chosen field and direction. Names use
// English collation, timestamps compare as strings. Ties keep their input
// order.
func Sort(items []models.Item, order models.SortOrder) {
	if len(items) < 2 {
		return
	}
	order = order.Normalize()

	// A Collator is not safe for concurrent use, so each sort gets its own.
	col := collate.New(language.English)

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]

		// Folders always come first
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}

		var c int
		switch order.Field {
		case models.SortByModifiedTime:
			c = strings.Compare(a.ModifiedTime, b.ModifiedTime)
		default:
			c = col.CompareString(a.ItemName, b.ItemName)
		}
		if order.Order == models.SortDesc {
			c = -c
		}
		return c < 0
	})
}

// Sorted returns a sorted copy of items.
func Sorted(items []models.Item, order models.SortOrder) []models.Item {
	out := make([]models.Item, len(items))
	copy(out, items)
	Sort(out, order)
	return out
}
