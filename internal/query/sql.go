package query

import "github.com/erazemk/shoplist/internal/db"

// Clause is a SQL fragment with its positional arguments.
type Clause struct {
	SQL  string
	Args []any
}

// matchAll is the predicate used when no filter applies.
var matchAll = Clause{SQL: "1=1"}

// matchNone is the predicate for filters naming a field that does not exist.
var matchNone = Clause{SQL: "0=1"}

// contains builds a case-insensitive substring match on expr. Both sides are
// case-folded over the whole of Unicode.
func contains(expr, search string) Clause {
	return Clause{
		SQL:  "instr(" + fold(expr) + ", " + fold("?") + ") > 0",
		Args: []any{search},
	}
}

func fold(expr string) string {
	return db.FoldFunc + "(" + expr + ")"
}

// itemFields maps filterable item fields to column expressions.
var itemFields = map[string]string{
	"name":        "name",
	"description": "description",
	"price":       "CAST(price AS TEXT)",
}

// itemSorts maps sortable item fields to ORDER BY expressions. Text columns
// sort case-insensitively.
var itemSorts = map[string]string{
	"name":        "name COLLATE " + db.NoCaseCollation,
	"price":       "price",
	"description": "description COLLATE " + db.NoCaseCollation,
}

// ItemWhere returns the predicate selecting items for p.
func ItemWhere(p Params) Clause {
	if !p.Searching() {
		return matchAll
	}
	expr, ok := itemFields[p.Filter]
	if !ok {
		return matchNone
	}
	return contains(expr, p.Search)
}

// ItemOrder returns the ORDER BY expression for items.
func ItemOrder(p Params) string {
	return order(itemSorts, p)
}

// FilterItem is the list filter that matches on referenced item names.
const FilterItem = "item"

var listFields = map[string]string{
	"name":        "name",
	"description": "description",
}

var listSorts = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
}

// ItemNameWhere returns the predicate selecting items whose name matches the
// search term.
func ItemNameWhere(search string) Clause {
	return contains("name", search)
}

// ListWhere returns the predicate selecting lists for p. Unrecognized filters
// apply no predicate.
func ListWhere(p Params) Clause {
	if !p.Searching() {
		return matchAll
	}
	if p.Filter == FilterItem {
		c := contains("i.name", p.Search)
		return Clause{
			SQL: `id IN (SELECT le.list_id FROM list_entries le
			             JOIN items i ON i.id = le.item_id
			             WHERE ` + c.SQL + `)`,
			Args: c.Args,
		}
	}
	if expr, ok := listFields[p.Filter]; ok {
		return contains(expr, p.Search)
	}
	return matchAll
}

// ListOrder returns the ORDER BY expression for lists.
func ListOrder(p Params) string {
	return order(listSorts, p)
}

// order resolves p.SortBy against the allow-list. Insertion order breaks
// ties and is used alone when the sort field is unknown.
func order(allowed map[string]string, p Params) string {
	expr, ok := allowed[p.SortBy]
	if !ok {
		return "rowid"
	}
	if p.Desc {
		expr += " DESC"
	}
	return expr + ", rowid"
}
