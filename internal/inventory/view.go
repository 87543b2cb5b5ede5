package inventory

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// SortKey selects the ordering of a view.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByQuantity SortKey = "quantity"
	SortByDate     SortKey = "date"
)

// ParseSortKey maps a query value to a SortKey. Empty means SortByName.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByName:
		return SortByName, nil
	case SortByQuantity:
		return SortByQuantity, nil
	case SortByDate:
		return SortByDate, nil
	}
	return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, s)
}

type sortable struct {
	item models.Item
	name string
}

// Sort returns a sorted copy of items. Items that compare equal keep their
// relative order in both directions.
func Sort(items []models.Item, key SortKey, descending bool) []models.Item {
	rows := make([]sortable, len(items))
	for i, it := range items {
		rows[i] = sortable{item: it}
		if key == SortByName || key == "" {
			rows[i].name = NaturalKey(it.Name)
		}
	}

	var compare func(a, b sortable) int
	switch key {
	case SortByQuantity:
		compare = func(a, b sortable) int { return cmp.Compare(a.item.Quantity, b.item.Quantity) }
	case SortByDate:
		compare = func(a, b sortable) int { return a.item.LastModified().Compare(b.item.LastModified()) }
	default:
		compare = func(a, b sortable) int { return strings.Compare(a.name, b.name) }
	}
	if descending {
		asc := compare
		compare = func(a, b sortable) int { return asc(b, a) }
	}

	slices.SortStableFunc(rows, compare)

	sorted := make([]models.Item, len(rows))
	for i, r := range rows {
		sorted[i] = r.item
	}
	return sorted
}

// Filter keeps the items whose name contains query, ignoring case. The
// input order is preserved and an empty query keeps everything.
func Filter(items []models.Item, query string) []models.Item {
	if query == "" {
		return slices.Clone(items)
	}

	q := strings.ToLower(query)
	filtered := make([]models.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

// View sorts items and then filters them.
func View(items []models.Item, key SortKey, descending bool, query string) []models.Item {
	return Filter(Sort(items, key, descending), query)
}
