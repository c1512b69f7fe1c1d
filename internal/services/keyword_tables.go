package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed data/keyword_tables.json
var defaultKeywordTablesJSON []byte

// KeywordEntry maps a keyword found in an identifier to the term used in queries
type KeywordEntry struct {
	Keyword   string `json:"keyword"`
	Canonical string `json:"canonical"`
}

// KeywordTables are the ordered lookup tables used by the query builder.
// Variant and subset lists are checked in order and the first whole-word match
// wins; brand aliases only apply on an exact (case-insensitive) set name match.
type KeywordTables struct {
	Variants []KeywordEntry `json:"variants"`
	Subsets  []KeywordEntry `json:"subsets"`
	Brands   []KeywordEntry `json:"brands"`

	variantRes []*regexp.Regexp
	subsetRes  []*regexp.Regexp
	brands     map[string]string
}

// DefaultKeywordTables returns the embedded tables
func DefaultKeywordTables() *KeywordTables {
	tables, err := parseKeywordTables(defaultKeywordTablesJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded keyword tables are invalid: %v", err))
	}
	return tables
}

// LoadKeywordTables reads tables from a JSON file. An empty path returns the defaults.
func LoadKeywordTables(path string) (*KeywordTables, error) {
	if path == "" {
		return DefaultKeywordTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword tables: %w", err)
	}
	return parseKeywordTables(data)
}

func parseKeywordTables(data []byte) (*KeywordTables, error) {
	var tables KeywordTables
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode keyword tables: %w", err)
	}
	tables.compile()
	return &tables, nil
}

func (t *KeywordTables) compile() {
	t.variantRes = compileKeywords(t.Variants)
	t.subsetRes = compileKeywords(t.Subsets)
	t.brands = make(map[string]string, len(t.Brands))
	for _, b := range t.Brands {
		t.brands[normalizeKey(b.Keyword)] = b.Canonical
	}
}

func compileKeywords(entries []KeywordEntry) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(entries))
	for i, e := range entries {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(e.Keyword)) + `\b`)
	}
	return res
}

// MatchVariant returns the first variant (by table order) found in text
func (t *KeywordTables) MatchVariant(text string) (string, bool) {
	return firstMatch(t.Variants, t.variantRes, text)
}

// MatchSubset returns the first subset (by table order) found in text
func (t *KeywordTables) MatchSubset(text string) (string, bool) {
	return firstMatch(t.Subsets, t.subsetRes, text)
}

// ShortBrand returns the alias for setName, or setName unchanged when the
// table has no exact entry for it
func (t *KeywordTables) ShortBrand(setName string) string {
	if short, ok := t.brands[normalizeKey(setName)]; ok {
		return short
	}
	return strings.TrimSpace(setName)
}

// IsBrand reports whether text is exactly a known set name
func (t *KeywordTables) IsBrand(text string) bool {
	_, ok := t.brands[normalizeKey(text)]
	return ok
}

func firstMatch(entries []KeywordEntry, res []*regexp.Regexp, text string) (string, bool) {
	for i, re := range res {
		if re.MatchString(text) {
			return entries[i].Canonical, true
		}
	}
	return "", false
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
