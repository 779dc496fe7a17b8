package catalog

import "strings"

// Entry is the view of a store entry the filter engine needs. The directory
// read model maps its storage rows into this shape before filtering.
type Entry struct {
	Name     string
	Category string
	Block    string
	Floor    int
}

// Criteria describes one directory filter selection. Nil pointer fields mean
// "facet unset"; floor in particular must use the pointer sentinel because
// floor 0 (ground) is a legitimate selectable value.
type Criteria struct {
	Search   string
	Category *Category
	Block    *Block
	Floor    *int
}

// Matches reports whether an entry passes every set facet. Each facet is
// vacuously true when unset, so the zero Criteria matches everything.
func (c Criteria) Matches(entry Entry) bool {
	return c.matchesSearch(entry) &&
		c.matchesCategory(entry) &&
		c.matchesBlock(entry) &&
		c.matchesFloor(entry)
}

func (c Criteria) matchesSearch(entry Entry) bool {
	query := strings.TrimSpace(c.Search)
	if query == "" {
		return true
	}
	if entry.Name == "" {
		// An unnamed entry never matches a non-empty search.
		return false
	}
	return strings.Contains(strings.ToLower(entry.Name), strings.ToLower(query))
}

func (c Criteria) matchesCategory(entry Entry) bool {
	if c.Category == nil {
		return true
	}
	normalized, ok := NormalizeCategory(entry.Category)
	return ok && normalized == *c.Category
}

func (c Criteria) matchesBlock(entry Entry) bool {
	return c.Block == nil || entry.Block == string(*c.Block)
}

func (c Criteria) matchesFloor(entry Entry) bool {
	return c.Floor == nil || entry.Floor == *c.Floor
}

// Filter returns the entries matching the criteria, preserving input order.
func Filter(entries []Entry, c Criteria) []Entry {
	matched := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if c.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// CategoryCount pairs a canonical category with its occurrence count.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Counts holds per-category tallies over the full entry set, in the declared
// category order, plus the total of in-enumeration entries.
type Counts struct {
	Total           int             `json:"total"`
	PerCategory     []CategoryCount `json:"perCategory"`
	countByCategory map[Category]int
}

// Count returns the tally for a single category.
func (c Counts) Count(category Category) int {
	return c.countByCategory[category]
}

// CategoryCounts normalizes every entry's category, discards entries outside
// the fixed enumeration, and tallies the rest. Counts always cover the full
// entry set regardless of active filters, so facet buttons show global
// numbers. An empty entry set yields all-zero counts.
func CategoryCounts(entries []Entry) Counts {
	byCategory := make(map[Category]int, len(Categories))
	total := 0
	for _, entry := range entries {
		canonical, ok := NormalizeCategory(entry.Category)
		if !ok {
			continue
		}
		byCategory[canonical]++
		total++
	}

	perCategory := make([]CategoryCount, 0, len(Categories))
	for _, category := range Categories {
		perCategory = append(perCategory, CategoryCount{Category: category, Count: byCategory[category]})
	}
	return Counts{Total: total, PerCategory: perCategory, countByCategory: byCategory}
}
