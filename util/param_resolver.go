package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// ResolveValue replaces {$.path} tokens inside strings with values looked up
// in data. A string made of a single token is replaced by the raw value so
// numbers and maps keep their type. Maps and lists are resolved recursively.
func ResolveValue(data map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ResolveValue(data, item)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, ResolveValue(data, item))
		}
		return out
	case string:
		return resolveString(data, val)
	default:
		return v
	}
}

func resolveString(data map[string]any, s string) any {
	tokens := tokenPattern.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	tokenMap := make(map[string]any)
	for _, token := range tokens {
		tmatch := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if strings.HasPrefix(tmatch, "$") {
			value, err := jsonpath.JsonPathLookup(data, tmatch)
			if err != nil {
				continue
			}
			tokenMap[token] = value
		}
	}
	if len(tokens) == 1 && tokens[0] == s {
		if v, ok := tokenMap[s]; ok {
			return v
		}
		return s
	}
	newStr := s
	for t, tv := range tokenMap {
		newStr = strings.ReplaceAll(newStr, t, fmt.Sprintf("%v", tv))
	}
	return newStr
}
