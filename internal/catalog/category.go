// Package catalog holds the directory's closed vocabularies and the
// filtering logic applied to store entries.
package catalog

// Category is one member of the directory's fixed category set.
type Category string

// Block is one member of the fixed block label set.
type Block string

const (
	CategoryFashion       Category = "Fashion"
	CategoryFood          Category = "Food"
	CategoryElectronics   Category = "Electronics"
	CategoryBeauty        Category = "Beauty"
	CategoryHome          Category = "Home"
	CategoryEntertainment Category = "Entertainment"
	CategoryServices      Category = "Services"
)

const (
	Block1 Block = "1"
	Block2 Block = "2"
	Block3 Block = "3"
)

// Categories lists the canonical categories in presentation order. Counts and
// filter options follow this order, not insertion or alphabetical order.
var Categories = []Category{
	CategoryFashion,
	CategoryFood,
	CategoryElectronics,
	CategoryBeauty,
	CategoryHome,
	CategoryEntertainment,
	CategoryServices,
}

// Blocks lists the valid block labels. The backing store saw both letter and
// digit labels over time; this codebase standardises on digit-strings.
var Blocks = []Block{Block1, Block2, Block3}

// categorySynonyms maps known variant spellings to their canonical form.
// The backing store does not enforce the category enumeration at write time,
// so historical rows may carry the singular form.
var categorySynonyms = map[string]Category{
	"Service": CategoryServices,
}

var categorySet = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		set[c] = struct{}{}
	}
	return set
}()

var blockSet = func() map[Block]struct{} {
	set := make(map[Block]struct{}, len(Blocks))
	for _, b := range Blocks {
		set[b] = struct{}{}
	}
	return set
}()

// NormalizeCategory canonicalizes a raw category label. Labels outside the
// fixed set (after synonym folding) report ok=false; callers treat those rows
// as non-matching data, not as errors.
func NormalizeCategory(raw string) (Category, bool) {
	if canonical, ok := categorySynonyms[raw]; ok {
		return canonical, true
	}
	if _, ok := categorySet[Category(raw)]; ok {
		return Category(raw), true
	}
	return "", false
}

// ValidBlock reports whether label belongs to the fixed block set.
func ValidBlock(label string) bool {
	_, ok := blockSet[Block(label)]
	return ok
}
