package evaluate

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Comparator applies the binary evaluation rule and derives gap
// feedback when a result fails. Gap text is fed verbatim into the
// next worker retry prompt, so it is always specific, never a bare
// "FAIL".
type Comparator struct {
	eval   Evaluator
	logger *zap.Logger
}

// NewComparator creates a comparator. A nil logger defaults to no-op.
func NewComparator(logger *zap.Logger) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparator{logger: logger}
}

var (
	// "1) answer, 2) explanation" style enumerations.
	numberedItems = regexp.MustCompile(`\d+\)\s*([a-z][a-z0-9\s]*?)(?:,|\d+\)|$)`)

	// "fields: name, age, email" style field lists.
	colonItems = regexp.MustCompile(`:\s*([a-z_][a-z0-9_,\s]*)`)
)

// Evaluate decides PASS or FAIL for result against instructions.
// PASS requires the exact string "PASS"; every other outcome is FAIL
// with at least one gap, derived in priority order: missing result,
// malformed JSON, incomplete enumerations, unmet requirements, and
// finally a generic incorrect-result gap.
func (c *Comparator) Evaluate(instructions, result string) (Status, []string) {
	if c.eval.IsPass(result) {
		c.logger.Info("evaluation PASS",
			zap.String("instructions", instructions),
			zap.String("result", result),
		)
		return StatusPass, []string{}
	}

	gaps := c.determineGaps(instructions, result)
	c.logger.Info("evaluation FAIL",
		zap.String("instructions", instructions),
		zap.String("result", result),
		zap.Strings("gaps", gaps),
	)
	return StatusFail, gaps
}

func (c *Comparator) determineGaps(instructions, result string) []string {
	if strings.TrimSpace(result) == "" {
		return []string{"No result provided"}
	}

	if strings.Contains(strings.ToLower(instructions), "json") && !json.Valid([]byte(result)) {
		return []string{"Malformed result: " + result}
	}

	// Colons or parenthesized numbers suggest the instructions
	// enumerate specific items the result must name.
	if strings.Contains(instructions, ":") || strings.Contains(instructions, ")") {
		if missing := findMissingItems(instructions, result); len(missing) > 0 {
			return []string{"Incomplete result: missing " + strings.Join(missing, ", ")}
		}
	}

	requirements := c.eval.ExtractRequirements(instructions)
	if len(requirements) > 0 {
		if gaps := c.eval.FindGaps(requirements, result); len(gaps) > 0 {
			return gaps
		}
	}

	return []string{"Incorrect result: " + result}
}

// findMissingItems extracts named items from enumerations in the
// instruction text and reports those absent from the result.
func findMissingItems(instructions, result string) []string {
	instructionsLower := strings.ToLower(instructions)
	resultLower := strings.ToLower(result)
	var missing []string

	for _, m := range numberedItems.FindAllStringSubmatch(instructionsLower, -1) {
		item := strings.TrimSpace(m[1])
		if item != "" && !strings.Contains(resultLower, item) {
			missing = append(missing, item)
		}
	}
	if len(missing) > 0 {
		return missing
	}

	for _, m := range colonItems.FindAllStringSubmatch(instructionsLower, -1) {
		for _, item := range strings.Split(m[1], ",") {
			item = strings.TrimSpace(item)
			if item != "" && !strings.Contains(resultLower, item) {
				missing = append(missing, item)
			}
		}
	}
	return missing
}
