package services

import (
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/card-valuer/internal/models"
)

const parseCacheSize = 4096

var (
	segmentSplitRe = regexp.MustCompile(`\s+[-–]\s+|\s*\|\s*`)

	// "12/99", "/99", "#/99", "#12/99". The numerator touches the slash, so
	// "#278 /99" keeps 278 as the card number.
	serialRe = regexp.MustCompile(`(?:^|[\s#(])#?(\d{1,4})?/\s*(\d{1,5})\b`)

	cardNumberRe = regexp.MustCompile(`#\s*([A-Za-z0-9][A-Za-z0-9-]*)`)
	yearRe       = regexp.MustCompile(`\b((?:19|20)\d{2}(?:[-/]\d{2,4})?)\b`)
	spaceRe      = regexp.MustCompile(`\s+`)
	alnumRe      = regexp.MustCompile(`[\pL\pN]`)
)

// QueryBuilder turns catalog identifiers into search queries. It is pure:
// no I/O, and it never fails on malformed input.
type QueryBuilder struct {
	tables *KeywordTables
	cache  *lru.Cache[string, models.CardIdentifier]
}

// NewQueryBuilder creates a query builder over the given keyword tables
// (nil means the embedded defaults)
func NewQueryBuilder(tables *KeywordTables) *QueryBuilder {
	if tables == nil {
		tables = DefaultKeywordTables()
	}

	cache, err := lru.New[string, models.CardIdentifier](parseCacheSize)
	if err != nil {
		log.Printf("Query builder: failed to create parse cache: %v", err)
	}

	return &QueryBuilder{
		tables: tables,
		cache:  cache,
	}
}

// Parse decomposes an identifier into its optional fields. Structured
// identifiers are " - " or "|" separated segments with the player last;
// anything else is freeform.
func (b *QueryBuilder) Parse(identifier string) models.CardIdentifier {
	if b.cache != nil {
		if id, ok := b.cache.Get(identifier); ok {
			return id
		}
	}

	id := b.parse(identifier)
	if b.cache != nil {
		b.cache.Add(identifier, id)
	}
	return id
}

func (b *QueryBuilder) parse(identifier string) models.CardIdentifier {
	raw := strings.TrimSpace(identifier)
	id := models.CardIdentifier{Raw: raw}

	if label, n, ok := ExtractGrade(raw); ok {
		id.GradeLabel = label
		id.GradeNumber = n
	}
	work := collapse(stripGrade(raw))

	var segments []string
	for _, seg := range segmentSplitRe.Split(work, -1) {
		if seg = textOrEmpty(seg); seg != "" {
			segments = append(segments, seg)
		}
	}

	if len(segments) <= 1 {
		id.Freeform = true
		text := strings.Join(segments, " ")
		text = b.takeSerial(&id, text)
		id.Player = textOrEmpty(text)
		b.takeCardNumber(&id, text)
		if m := yearRe.FindStringSubmatch(text); m != nil {
			id.Year = m[1]
		}
		id.Variant, _ = b.tables.MatchVariant(text)
		id.Subset, _ = b.tables.MatchSubset(text)
		return id
	}

	playerIdx := -1
	for i, seg := range segments {
		rest := b.takeSerial(&id, seg)
		rest = b.takeCardNumber(&id, rest)
		rest = textOrEmpty(rest)
		segments[i] = rest

		switch {
		case rest == "":
			continue
		case yearRe.MatchString(rest):
			m := yearRe.FindStringSubmatchIndex(rest)
			if id.Year == "" {
				id.Year = rest[m[2]:m[3]]
			}
			if set := collapse(rest[:m[0]] + " " + rest[m[1]:]); set != "" && id.SetName == "" {
				id.SetName = set
			}
		case b.tables.IsBrand(rest):
			if id.SetName == "" {
				id.SetName = rest
			}
		default:
			playerIdx = i
		}
	}

	var meta []string
	for i, seg := range segments {
		if i != playerIdx && seg != "" {
			meta = append(meta, seg)
		}
	}
	if playerIdx >= 0 {
		id.Player = segments[playerIdx]
	}

	metaText := strings.Join(meta, " ")
	id.Variant, _ = b.tables.MatchVariant(metaText)
	id.Subset, _ = b.tables.MatchSubset(metaText)
	return id
}

// takeSerial removes the first print-run token from s. A numerator above the
// run ("2023/24") is a season, not a serial, and is left for the year.
func (b *QueryBuilder) takeSerial(id *models.CardIdentifier, s string) string {
	for _, m := range serialRe.FindAllStringSubmatchIndex(s, -1) {
		run, _ := strconv.Atoi(s[m[4]:m[5]])
		number := 0
		if m[2] >= 0 {
			number, _ = strconv.Atoi(s[m[2]:m[3]])
		}
		if run == 0 || number > run || isSeason(number, run) {
			continue
		}
		if id.SerialRun == 0 {
			id.SerialNumber = number
			id.SerialRun = run
		}
		return s[:m[0]] + " " + s[m[1]:]
	}
	return s
}

// isSeason matches "2023/2024" style spans, the one season form whose
// numerator does not exceed the run
func isSeason(number, run int) bool {
	return number >= 1900 && run == number+1
}

func (b *QueryBuilder) takeCardNumber(id *models.CardIdentifier, s string) string {
	m := cardNumberRe.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	if id.CardNumber == "" {
		id.CardNumber = s[m[2]:m[3]]
	}
	return s[:m[0]] + " " + s[m[1]:]
}

// BuildQuery returns the primary search query: player, card number, variant,
// subset, year and short brand, then the grade filter. The serial run is left
// out so sales across print runs stay visible for normalization.
func (b *QueryBuilder) BuildQuery(identifier string) string {
	id := b.Parse(identifier)
	return b.assemble(b.primaryTerms(id), id.GradeLabel, id.GradeNumber)
}

// BuildFallbackQuery returns the simplified query (player, card number, year)
// used when the primary query yields no usable listings
func (b *QueryBuilder) BuildFallbackQuery(identifier string) string {
	id := b.Parse(identifier)
	return b.assemble([]string{id.Player, numberTerm(id.CardNumber), id.Year}, id.GradeLabel, id.GradeNumber)
}

// BuildGradedQuery returns the primary query retargeted at a PSA grade
func (b *QueryBuilder) BuildGradedQuery(identifier string, grade int) string {
	id := b.Parse(identifier)
	return b.assemble(b.primaryTerms(id), "PSA "+strconv.Itoa(grade), grade)
}

func (b *QueryBuilder) primaryTerms(id models.CardIdentifier) []string {
	terms := []string{id.Player, numberTerm(id.CardNumber), id.Variant}
	if id.Subset != "" && !impliedBy(id.Subset, id.Variant) {
		terms = append(terms, id.Subset)
	}
	terms = append(terms, id.Year)
	if id.SetName != "" {
		terms = append(terms, b.tables.ShortBrand(id.SetName))
	}
	return terms
}

func (b *QueryBuilder) assemble(terms []string, gradeLabel string, gradeNumber int) string {
	var parts []string
	seen := ""
	for _, term := range terms {
		term = collapse(term)
		if term == "" || containsTerm(seen, term) {
			continue
		}
		parts = append(parts, term)
		seen += " " + term
	}

	if gradeLabel != "" {
		parts = append(parts, strconv.Quote(gradeLabel))
		for n := 1; n <= 10; n++ {
			if n != gradeNumber {
				parts = append(parts, `-"PSA `+strconv.Itoa(n)+`"`)
			}
		}
	} else {
		for _, kw := range gradingKeywords {
			parts = append(parts, "-"+kw)
		}
	}
	return strings.Join(parts, " ")
}

func numberTerm(num string) string {
	if num == "" {
		return ""
	}
	return "#" + num
}

// impliedBy reports whether one keyword already carries the other
func impliedBy(subset, variant string) bool {
	if variant == "" {
		return false
	}
	s, v := strings.ToLower(subset), strings.ToLower(variant)
	return strings.Contains(v, s) || strings.Contains(s, v)
}

// containsTerm reports whether term already appears in text as whole words
func containsTerm(text, term string) bool {
	re, err := regexp.Compile(`(?i)(?:^|\s)` + regexp.QuoteMeta(term) + `(?:$|\s)`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// textOrEmpty collapses s, and drops it when only punctuation is left
func textOrEmpty(s string) string {
	s = collapse(s)
	if !alnumRe.MatchString(s) {
		return ""
	}
	return s
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
