package evaluate

import (
	"regexp"
	"strings"
	"unicode"
)

// Status is the binary evaluation outcome.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// stopWords are filtered out when extracting key terms from a
// requirement.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "as": true, "to": true,
	"from": true, "with": true, "and": true, "or": true, "of": true,
}

// matchThreshold is the fraction of key terms that must appear in the
// result for a requirement to count as satisfied.
const matchThreshold = 0.5

var enumPrefix = regexp.MustCompile(`^\d+\.\s*`)

// proseIndicators disqualify a result from counting as an integer
// literal: digits embedded in prose are not an integer-typed answer.
var proseIndicators = []string{"is", "sum", "the"}

// Evaluator performs requirement extraction and gap detection. It is
// stateless and safe for concurrent use.
type Evaluator struct{}

// IsPass reports whether result is the exact string "PASS".
// Case-sensitive, no surrounding whitespace, no substring matches.
// There is no partial credit.
func (Evaluator) IsPass(result string) bool {
	return result == "PASS"
}

// ExtractRequirements splits instruction text into discrete
// requirements: one per non-blank line, with any leading "<n>. "
// enumeration prefix stripped. Blank lines, including consecutive
// runs, are dropped; order is preserved.
func (Evaluator) ExtractRequirements(instructions string) []string {
	requirements := []string{}
	for _, line := range strings.Split(strings.TrimSpace(instructions), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = enumPrefix.ReplaceAllString(line, "")
		if line != "" {
			requirements = append(requirements, line)
		}
	}
	return requirements
}

// FindGaps checks each requirement against the result and returns a
// gap string for every requirement the result does not satisfy.
func (e Evaluator) FindGaps(requirements []string, result string) []string {
	gaps := []string{}
	for _, requirement := range requirements {
		terms := extractKeyTerms(requirement)
		if !requirementSatisfied(requirement, terms, result) {
			gaps = append(gaps, "Missing requirement: "+requirement)
		}
	}
	return gaps
}

func extractKeyTerms(requirement string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(requirement)) {
		if !stopWords[word] {
			terms = append(terms, word)
		}
	}
	return terms
}

// requirementSatisfied applies the numeric-type constraint check, then
// requires at least half of the key terms to appear as substrings of
// the lowercased result.
func requirementSatisfied(requirement string, terms []string, result string) bool {
	resultLower := strings.ToLower(result)

	if strings.Contains(strings.ToLower(requirement), "integer") && !hasIntegerFormat(result, resultLower) {
		return false
	}

	matches := 0
	for _, term := range terms {
		if strings.Contains(resultLower, term) {
			matches++
		}
	}
	return float64(matches) >= float64(len(terms))*matchThreshold
}

// hasIntegerFormat reports whether the result reads as an integer
// value rather than prose mentioning a number.
func hasIntegerFormat(result, resultLower string) bool {
	hasDigit := strings.ContainsFunc(result, unicode.IsDigit)
	if !hasDigit {
		return false
	}
	for _, indicator := range proseIndicators {
		if strings.Contains(resultLower, indicator) {
			return false
		}
	}
	return true
}
