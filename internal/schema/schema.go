package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Type names follow JSON Schema draft-7 vocabulary.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Property constrains a single document field. A zero Type accepts
// any JSON value.
type Property struct {
	Type     Type
	Enum     []string
	MinItems int
	Items    *Property
}

// Schema describes one document shape. Unknown fields are always
// permitted.
type Schema struct {
	Required   []string
	Properties map[string]Property
}

// Instructions is the shape of instructions.json.
var Instructions = &Schema{
	Required: []string{"instructions", "output_path"},
	Properties: map[string]Property{
		"instructions": {Type: TypeString},
		"output_path":  {Type: TypeString},
	},
}

// Result is the shape of result.json. The result value may be any
// JSON value, including null.
var Result = &Schema{
	Required: []string{"result"},
	Properties: map[string]Property{
		"result": {},
	},
}

// FeedbackPass is the PASS shape of feedback.json.
var FeedbackPass = &Schema{
	Required: []string{"status", "result", "attempts"},
	Properties: map[string]Property{
		"status":   {Type: TypeString, Enum: []string{"PASS"}},
		"result":   {},
		"attempts": {Type: TypeInteger},
	},
}

// FeedbackFail is the FAIL shape of feedback.json. A FAIL must carry
// at least one gap string.
var FeedbackFail = &Schema{
	Required: []string{"status", "gaps", "attempt"},
	Properties: map[string]Property{
		"status":  {Type: TypeString, Enum: []string{"FAIL"}},
		"gaps":    {Type: TypeArray, MinItems: 1, Items: &Property{Type: TypeString}},
		"attempt": {Type: TypeInteger},
	},
}

// Validate checks doc against s. It reports ok and a list of
// messages, each prefixed with the dotted path of the offending field
// ("root" for document-level problems).
func Validate(doc map[string]any, s *Schema) (bool, []string) {
	var problems []string

	required := append([]string(nil), s.Required...)
	sort.Strings(required)
	for _, field := range required {
		if _, ok := doc[field]; !ok {
			problems = append(problems, fmt.Sprintf("root: %q is a required property", field))
		}
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, ok := doc[name]
		if !ok {
			continue
		}
		problems = append(problems, checkProperty(name, value, s.Properties[name])...)
	}

	return len(problems) == 0, problems
}

// ValidateInstructions checks an instructions.json document.
func ValidateInstructions(doc map[string]any) (bool, []string) {
	return Validate(doc, Instructions)
}

// ValidateResult checks a result.json document.
func ValidateResult(doc map[string]any) (bool, []string) {
	return Validate(doc, Result)
}

// ValidateFeedback checks a feedback.json document, dispatching on
// the status discriminant. Any status other than PASS or FAIL is
// itself a validation problem.
func ValidateFeedback(doc map[string]any) (bool, []string) {
	switch status := doc["status"]; status {
	case "PASS":
		return Validate(doc, FeedbackPass)
	case "FAIL":
		return Validate(doc, FeedbackFail)
	default:
		return false, []string{fmt.Sprintf("status: invalid status %v (must be \"PASS\" or \"FAIL\")", formatValue(status))}
	}
}

func checkProperty(path string, value any, p Property) []string {
	var problems []string

	if p.Type != "" && !matchesType(value, p.Type) {
		problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", path, p.Type, jsonTypeName(value)))
		return problems
	}

	if len(p.Enum) > 0 {
		s, _ := value.(string)
		allowed := false
		for _, candidate := range p.Enum {
			if s == candidate {
				allowed = true
				break
			}
		}
		if !allowed {
			problems = append(problems, fmt.Sprintf("%s: %v is not one of [%s]", path, formatValue(value), strings.Join(p.Enum, ", ")))
		}
	}

	if p.Type == TypeArray {
		items, _ := value.([]any)
		if len(items) < p.MinItems {
			problems = append(problems, fmt.Sprintf("%s: array has %d items, requires at least %d", path, len(items), p.MinItems))
		}
		if p.Items != nil {
			for i, item := range items {
				problems = append(problems, checkProperty(fmt.Sprintf("%s.%d", path, i), item, *p.Items)...)
			}
		}
	}

	return problems
}

func matchesType(value any, t Type) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeNumber:
		return isNumber(value)
	case TypeInteger:
		return isInteger(value)
	default:
		return true
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

// isInteger accepts native integer types and JSON numbers with no
// fractional part (encoding/json decodes all numbers as float64).
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return true
	case float64:
		return v == math.Trunc(v)
	case float32:
		return float64(v) == math.Trunc(float64(v))
	}
	return false
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
