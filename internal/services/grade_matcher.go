package services

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// PSA grade token in an identifier, optionally bracketed: "[PSA 10]", "PSA 9"
	gradeTokenRe = regexp.MustCompile(`(?i)\[?\s*\bPSA\s*(\d+)\b\s*\]?`)

	// Any grading-service number in a listing title
	titleGradeRe = regexp.MustCompile(`(?i)\b(PSA|BGS|SGC)\s*(\d+(?:\.\d+)?)`)

	// Grading keywords as standalone tokens. "PSA10" counts, "UNGRADED" does not.
	gradingKeywordRe = regexp.MustCompile(`(?i)\b(?:PSA|BGS|SGC)(?:\b|\d)|\bGRADED\b`)
)

// gradingKeywords are excluded from raw-card queries
var gradingKeywords = []string{"PSA", "BGS", "SGC", "graded"}

// ExtractGrade finds the first PSA grade token in an identifier or title.
// ok is false for an ungraded ("raw") card.
func ExtractGrade(identifier string) (label string, number int, ok bool) {
	m := gradeTokenRe.FindStringSubmatch(identifier)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", 0, false
	}
	return "PSA " + strconv.Itoa(n), n, true
}

// stripGrade removes the first grade token from s
func stripGrade(s string) string {
	loc := gradeTokenRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + " " + s[loc[1]:]
}

// TitleMatchesGrade reports whether a listing title is unambiguously for the
// expected grade. A graded target needs "PSA <n>" as a whole token and no other
// grade number anywhere in the title. A raw target (empty label) rejects any
// title carrying a grading keyword.
func TitleMatchesGrade(title, gradeLabel string, gradeNumber int) bool {
	if gradeLabel == "" {
		return !gradingKeywordRe.MatchString(title)
	}

	want := strconv.Itoa(gradeNumber)
	found := false
	for _, m := range titleGradeRe.FindAllStringSubmatch(title, -1) {
		service, number := strings.ToUpper(m[1]), m[2]
		if service == "PSA" && number == want {
			found = true
			continue
		}
		return false
	}
	return found
}
