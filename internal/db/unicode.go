package db

import (
	"database/sql/driver"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"modernc.org/sqlite"
)

// SQLite's lower() and NOCASE only fold ASCII. These replacements fold the
// whole of Unicode and are available on every connection.
const (
	// FoldFunc is a scalar function returning the case-folded text of its argument.
	FoldFunc = "casefold"
	// NoCaseCollation orders text by English collation rules, ignoring case.
	NoCaseCollation = "unicode_nocase"
)

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.English, collate.IgnoreCase)
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(FoldFunc, 1, casefold)
	sqlite.MustRegisterCollationUtf8(NoCaseCollation, compareNoCase)
}

func casefold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return cases.Fold().String(v), nil
	case []byte:
		return cases.Fold().String(string(v)), nil
	default:
		return v, nil
	}
}

// compareNoCase orders strings ignoring case. Strings differing only in case
// compare equal.
func compareNoCase(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}
