package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Error    string
	Mobile   string
	Other    string
	SortAsc  string
	SortDesc string
}

var unicodeSymbols = SymbolSet{
	Error:    "\u2717",     // ✗
	Mobile:   "\U0001F4F1", // 📱
	Other:    "\U0001F4F6", // 📶
	SortAsc:  "\u25B2",     // ▲
	SortDesc: "\u25BC",     // ▼
}

var asciiSymbols = SymbolSet{
	Error:    "[ERR]",
	Mobile:   "[M]",
	Other:    "[-]",
	SortAsc:  "^",
	SortDesc: "v",
}

var (
	SymbolError    = unicodeSymbols.Error
	SymbolMobile   = unicodeSymbols.Mobile
	SymbolOther    = unicodeSymbols.Other
	SymbolSortAsc  = unicodeSymbols.SortAsc
	SymbolSortDesc = unicodeSymbols.SortDesc
)

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// Priority: BTSCANNER_ASCII_SYMBOLS env (explicit override) > locale detection.
// The first non-empty of LC_ALL, LC_CTYPE and LANG decides; with no locale
// set, Unicode is assumed.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("BTSCANNER_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if val == "" {
			continue
		}
		return strings.Contains(val, "utf-8") || strings.Contains(val, "utf8")
	}
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called automatically by init(), but can be called again
// if the environment changes (e.g., in tests).
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolError = set.Error
	SymbolMobile = set.Mobile
	SymbolOther = set.Other
	SymbolSortAsc = set.SortAsc
	SymbolSortDesc = set.SortDesc
}

func init() {
	InitSymbols()
}
