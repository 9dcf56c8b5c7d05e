package tools

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"shopmate/pkg/errs"
	"shopmate/pkg/llm"
)

// Validate checks args against a tool's parameter schema: required keys,
// JSON types, nested items and properties. Null values count as absent.
func Validate(schema *llm.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	if problems := validateObject("", schema, args); len(problems) > 0 {
		return errs.New(errs.CodeInvalidArguments, "invalid arguments: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateObject(path string, s *llm.Schema, obj map[string]any) []string {
	var problems []string

	for _, key := range s.Required {
		if v, ok := obj[key]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("%s is required", join(path, key)))
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := obj[key]
		prop, known := s.Properties[key]
		if !known {
			if s.AdditionalProperties != nil && !*s.AdditionalProperties {
				problems = append(problems, fmt.Sprintf("%s is not allowed", join(path, key)))
			}
			continue
		}
		if v == nil {
			continue
		}
		problems = append(problems, validateValue(join(path, key), prop, v)...)
	}
	return problems
}

func validateValue(path string, s *llm.Schema, v any) []string {
	mismatch := func() []string {
		return []string{fmt.Sprintf("%s must be %s, got %s", path, article(s.Type), jsonType(v))}
	}

	switch s.Type {
	case "string":
		if _, ok := v.(string); ok {
			break
		}
		if s.Coerce && isNumber(v) {
			break
		}
		return mismatch()

	case "integer":
		if f, ok := toFloat(v); ok && f == math.Trunc(f) {
			break
		}
		if _, ok := v.(string); ok && s.Coerce {
			break
		}
		return mismatch()

	case "number":
		if isNumber(v) {
			break
		}
		if str, ok := v.(string); ok && s.Coerce {
			if _, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				break
			}
		}
		return mismatch()

	case "boolean":
		if _, ok := v.(bool); !ok {
			return mismatch()
		}

	case "array":
		items, ok := v.([]any)
		if !ok {
			return mismatch()
		}
		if s.Items == nil {
			break
		}
		var problems []string
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				problems = append(problems, fmt.Sprintf("%s must not be null", itemPath))
				continue
			}
			problems = append(problems, validateValue(itemPath, s.Items, item)...)
		}
		return problems

	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch()
		}
		return validateObject(path, s, obj)
	}

	if len(s.Enum) > 0 {
		str := fmt.Sprint(v)
		for _, e := range s.Enum {
			if e == str {
				return nil
			}
		}
		return []string{fmt.Sprintf("%s must be one of %s", path, strings.Join(s.Enum, ", "))}
	}
	return nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func article(t string) string {
	switch t {
	case "integer", "array", "object":
		return "an " + t
	default:
		return "a " + t
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		if isNumber(v) {
			return "number"
		}
		return fmt.Sprintf("%T", v)
	}
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// intArg reads a numeric-like argument, falling back to def when it is
// missing or unparsable.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return def
	default:
		if f, ok := toFloat(v); ok {
			return int(f)
		}
		return def
	}
}

// stringArg reads a string argument; numbers are rendered without exponent.
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

func floatArg(args map[string]any, key string) float64 {
	if s, ok := args[key].(string); ok {
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f
	}
	f, _ := toFloat(args[key])
	return f
}
